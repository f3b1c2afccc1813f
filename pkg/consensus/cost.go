package consensus

import "github.com/dronefleet/vioconsensus/pkg/geometry"

// The three cost functions below implement residual.CostFunction for
// the consensus penalty geometries in spec.md §4.3. Jacobians are the
// first-order approximation appropriate near the dual point: each
// residual component depends (to first order) on the matching ambient
// coordinate scaled by its weight, with the SE3 rotation block's
// jacobian expressed against the quaternion's imaginary components
// (the tangent-space-to-ambient map at identity). This is adequate for
// a Gauss-Newton style inner solver operating in the small-disagreement
// regime consensus penalties are meant to enforce.

type se3ConsensusCost struct {
	target        [7]float64
	rhoT, rhoTheta float64
}

func (c *se3ConsensusCost) NumResiduals() int { return 6 }

func (c *se3ConsensusCost) Evaluate(params [][]float64, residuals []float64, jacobians [][]float64) bool {
	x := geometry.SE3FromSlice(params[0])
	xd := geometry.SE3FromSlice(c.target[:])
	e := x.BoxMinus(xd)

	residuals[0] = c.rhoT * e[0]
	residuals[1] = c.rhoT * e[1]
	residuals[2] = c.rhoT * e[2]
	residuals[3] = c.rhoTheta * e[3]
	residuals[4] = c.rhoTheta * e[4]
	residuals[5] = c.rhoTheta * e[5]

	if len(jacobians) > 0 && jacobians[0] != nil {
		jac := jacobians[0]
		for i := range jac {
			jac[i] = 0
		}
		set := func(row, col int, v float64) { jac[row*7+col] = v }
		set(0, 0, c.rhoT)
		set(1, 1, c.rhoT)
		set(2, 2, c.rhoT)
		set(3, 3, 2*c.rhoTheta)
		set(4, 4, 2*c.rhoTheta)
		set(5, 5, 2*c.rhoTheta)
	}
	return true
}

type yawConsensusCost struct {
	target         [4]float64
	rhoT, rhoTheta float64
}

func (c *yawConsensusCost) NumResiduals() int { return 4 }

func (c *yawConsensusCost) Evaluate(params [][]float64, residuals []float64, jacobians [][]float64) bool {
	p := geometry.YawPoseFromSlice(params[0])
	ref := geometry.YawPoseFromSlice(c.target[:])
	e := p.BoxMinus(ref)

	residuals[0] = c.rhoT * e[0]
	residuals[1] = c.rhoT * e[1]
	residuals[2] = c.rhoT * e[2]
	residuals[3] = c.rhoTheta * e[3]

	if len(jacobians) > 0 && jacobians[0] != nil {
		jac := jacobians[0]
		for i := range jac {
			jac[i] = 0
		}
		jac[0*4+0] = c.rhoT
		jac[1*4+1] = c.rhoT
		jac[2*4+2] = c.rhoT
		jac[3*4+3] = c.rhoTheta
	}
	return true
}

type euclideanConsensusCost struct {
	target []float64
	rho    float64
}

func (c *euclideanConsensusCost) NumResiduals() int { return len(c.target) }

func (c *euclideanConsensusCost) Evaluate(params [][]float64, residuals []float64, jacobians [][]float64) bool {
	n := len(c.target)
	for i := 0; i < n; i++ {
		residuals[i] = c.rho * (params[0][i] - c.target[i])
	}
	if len(jacobians) > 0 && jacobians[0] != nil {
		jac := jacobians[0]
		for i := range jac {
			jac[i] = 0
		}
		for i := 0; i < n; i++ {
			jac[i*n+i] = c.rho
		}
	}
	return true
}
