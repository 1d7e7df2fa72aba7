package estimator

import (
	"math"

	"github.com/LdDl/movement-params/mot"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// polynomial is y(x) fitted on normalized argument u = (x - shift) / scale.
// Coefficients are stored from the highest power.
type polynomial struct {
	coef  []float64
	shift float64
	scale float64
}

func (poly polynomial) eval(x float64) float64 {
	u := (x - poly.shift) / poly.scale
	y := 0.0
	for _, c := range poly.coef {
		y = y*u + c
	}
	return y
}

// normalize centers xs and scales them into [-1, 1]
func normalize(xs []float64, eps float64) ([]float64, float64, float64) {
	shift := stat.Mean(xs, nil)
	scale := 0.0
	for _, x := range xs {
		scale = math.Max(scale, math.Abs(x-shift))
	}
	if scale < eps {
		scale = 1
	}
	us := make([]float64, len(xs))
	for i, x := range xs {
		us[i] = (x - shift) / scale
	}
	return us, shift, scale
}

// fitLine solves ordinary least squares for y = a*x + b
func fitLine(xs, ys []float64, eps float64) polynomial {
	us, shift, scale := normalize(xs, eps)
	n := float64(len(us))
	sumU, sumY, sumUY, sumUU := 0.0, 0.0, 0.0, 0.0
	for i := range us {
		sumU += us[i]
		sumY += ys[i]
		sumUY += us[i] * ys[i]
		sumUU += us[i] * us[i]
	}
	slope := (n*sumUY - sumU*sumY) / (n*sumUU - sumU*sumU + eps)
	intercept := (sumY - slope*sumU) / n
	return polynomial{
		coef:  []float64{slope, intercept},
		shift: shift,
		scale: scale,
	}
}

// fitQuadratic solves normal equations for y = a*x^2 + b*x + c by Cramer's rule
func fitQuadratic(xs, ys []float64, eps float64) polynomial {
	us, shift, scale := normalize(xs, eps)
	design := mat.NewDense(len(us), 3, nil)
	for i, u := range us {
		design.SetRow(i, []float64{u * u, u, 1})
	}
	var normal mat.Dense
	normal.Mul(design.T(), design)
	var rhs mat.VecDense
	rhs.MulVec(design.T(), mat.NewVecDense(len(ys), ys))

	det := mat.Det(&normal)
	coef := make([]float64, 3)
	for k := 0; k < 3; k++ {
		replaced := mat.DenseCopyOf(&normal)
		replaced.SetCol(k, rhs.RawVector().Data)
		coef[k] = mat.Det(replaced) / (det + eps)
	}
	return polynomial{
		coef:  coef,
		shift: shift,
		scale: scale,
	}
}

type fitFunc func(xs, ys []float64, eps float64) polynomial

// extrapolate fits the dominant axis against sample index and the other axis against the dominant one,
// then evaluates both at given index offsets.
// When the dominant axis does not move, the other axis is fitted against index too.
func extrapolate(points []mot.Point, index []float64, at []float64, fit fitFunc, eps float64) []mot.Point {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	swapped := spread(ys) > spread(xs)
	major, minor := xs, ys
	if swapped {
		major, minor = ys, xs
	}

	majorPoly := fit(index, major, eps)
	stationary := spread(major) < eps
	var minorPoly polynomial
	if stationary {
		minorPoly = fit(index, minor, eps)
	} else {
		minorPoly = fit(major, minor, eps)
	}

	result := make([]mot.Point, 0, len(at))
	for _, t := range at {
		m := majorPoly.eval(t)
		var n float64
		if stationary {
			n = minorPoly.eval(t)
		} else {
			n = minorPoly.eval(m)
		}
		if math.IsNaN(m) || math.IsNaN(n) || math.IsInf(m, 0) || math.IsInf(n, 0) {
			continue
		}
		if swapped {
			result = append(result, mot.Point{X: n, Y: m})
		} else {
			result = append(result, mot.Point{X: m, Y: n})
		}
	}
	return result
}

func spread(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

// predictLinear uses three samples spaced by LinearStep (or 1 on short history) and predicts one point
func (estimator *Estimator) predictLinear(points []mot.Point) []mot.Point {
	n := len(points)
	if n < 3 {
		return nil
	}
	step := estimator.cfg.LinearStep
	if n < 2*step+1 {
		step = 1
	}
	selected := []mot.Point{points[n-1-2*step], points[n-1-step], points[n-1]}
	s := float64(step)
	index := []float64{0, s, 2 * s}
	at := []float64{2*s + estimator.cfg.LinearLookAhead}
	return extrapolate(selected, index, at, fitLine, estimator.cfg.Epsilon)
}

// predictQuadratic fits curve to the newest QuadraticWindow samples and predicts three points
func (estimator *Estimator) predictQuadratic(points []mot.Point) []mot.Point {
	if len(points) < estimator.cfg.QuadraticMinSamples {
		return nil
	}
	if len(points) > estimator.cfg.QuadraticWindow {
		points = points[len(points)-estimator.cfg.QuadraticWindow:]
	}
	index := make([]float64, len(points))
	for i := range index {
		index[i] = float64(i)
	}
	last := float64(len(points) - 1)
	at := make([]float64, 0, len(estimator.cfg.QuadraticLookAhead))
	for _, ahead := range estimator.cfg.QuadraticLookAhead {
		at = append(at, last+ahead)
	}
	return extrapolate(points, index, at, fitQuadratic, estimator.cfg.Epsilon)
}
