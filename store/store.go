package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"time"

	"github.com/LdDl/movement-params/mot"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// schema.sql creates observations table: one row per identified object per frame.
//
//go:embed schema.sql
var schemaSQL string

// DB stores processed frames in SQLite database
type DB struct {
	*sql.DB
}

// Observation is a single stored state of an object
type Observation struct {
	FrameID      uuid.UUID
	Created      time.Time
	ObjectID     int64
	Label        string
	Box          mot.BoundingBox
	Speed        float64
	Acceleration float64
	// Nil when world position was unknown
	World     *mot.Point
	Predicted []mot.Point
}

// NewDB opens (or creates) database file and prepares schema
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open database '%s'", path)
	}
	_, err = db.Exec(schemaSQL)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Can't initialize schema")
	}
	return &DB{db}, nil
}

// Push stores every identified object of the frame in a single transaction.
// Objects without identity are skipped.
func (db *DB) Push(frame *mot.Frame) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "Can't begin transaction")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO observations (frame_id, created, object_id, label, box_left, box_top, box_right, box_bottom, speed, acceleration, world_x, world_y, predicted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, object := range frame.Objects {
		id, ok := object.GetID()
		if !ok {
			continue
		}
		box := object.GetBBox()
		var worldX, worldY sql.NullFloat64
		if world, ok := object.GetWorldPosition(); ok {
			worldX = sql.NullFloat64{Float64: world.X, Valid: true}
			worldY = sql.NullFloat64{Float64: world.Y, Valid: true}
		}
		predicted := object.GetPredicted()
		if predicted == nil {
			predicted = []mot.Point{}
		}
		predictedJSON, err := json.Marshal(predicted)
		if err != nil {
			return errors.Wrapf(err, "Can't marshal predictions of object %d", id)
		}
		_, err = tx.Exec(query,
			frame.ID.String(), frame.Created.UnixNano(), id, object.GetLabel(),
			box.Left, box.Top, box.Right, box.Bottom,
			object.GetSpeed(), object.GetAcceleration(),
			worldX, worldY, string(predictedJSON),
		)
		if err != nil {
			return errors.Wrapf(err, "Can't insert object %d", id)
		}
	}
	return tx.Commit()
}

// ObjectTrack returns stored observations of the object ordered by time
func (db *DB) ObjectTrack(objectID int64) ([]Observation, error) {
	query := `
		SELECT frame_id, created, object_id, label, box_left, box_top, box_right, box_bottom, speed, acceleration, world_x, world_y, predicted
		FROM observations
		WHERE object_id = ?
		ORDER BY created, id
	`
	rows, err := db.Query(query, objectID)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't query track of object %d", objectID)
	}
	defer rows.Close()

	track := make([]Observation, 0)
	for rows.Next() {
		var (
			observation    Observation
			frameID        string
			created        int64
			worldX, worldY sql.NullFloat64
			predicted      string
		)
		err = rows.Scan(
			&frameID, &created, &observation.ObjectID, &observation.Label,
			&observation.Box.Left, &observation.Box.Top, &observation.Box.Right, &observation.Box.Bottom,
			&observation.Speed, &observation.Acceleration,
			&worldX, &worldY, &predicted,
		)
		if err != nil {
			return nil, errors.Wrap(err, "Can't scan observation")
		}
		observation.FrameID, err = uuid.Parse(frameID)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad frame identifier '%s'", frameID)
		}
		observation.Created = time.Unix(0, created)
		if worldX.Valid && worldY.Valid {
			observation.World = &mot.Point{X: worldX.Float64, Y: worldY.Float64}
		}
		err = json.Unmarshal([]byte(predicted), &observation.Predicted)
		if err != nil {
			return nil, errors.Wrap(err, "Can't unmarshal predictions")
		}
		track = append(track, observation)
	}
	return track, rows.Err()
}

// CountObjects returns number of distinct identities stored
func (db *DB) CountObjects() (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(DISTINCT object_id) FROM observations`).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "Can't count objects")
	}
	return count, nil
}
