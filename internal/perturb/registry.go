package perturb

import "fmt"

// Params carries the operator settings read from configuration.
type Params struct {
	MaxDelta       float64
	LocalityRadius int
	Level          int
	RamaBiased     bool
	PivotVariance  float64
}

// FromConfig resolves a named backbone operator.
func FromConfig(name string, params Params) (Operator, error) {
	switch NormalizeName(name) {
	case "single_torsion":
		if params.MaxDelta <= 0 {
			return nil, fmt.Errorf("single_torsion: max delta must be > 0")
		}
		return Symmetric(params.MaxDelta), nil
	case "hierarchical":
		if params.LocalityRadius < 0 {
			return nil, fmt.Errorf("hierarchical: locality radius must be >= 0")
		}
		return &Hierarchical{
			MaxDelta:   params.MaxDelta,
			Local:      params.LocalityRadius,
			Level:      params.Level,
			RamaBiased: params.RamaBiased,
		}, nil
	case "pivot_coupled":
		pc := DefaultPivotCoupled()
		if params.MaxDelta > 0 {
			pc.MaxDelta = params.MaxDelta
		}
		if params.PivotVariance > 0 {
			pc.Variance = params.PivotVariance
		}
		return pc, nil
	default:
		return nil, fmt.Errorf("unsupported perturbation operator: %s", name)
	}
}

func NormalizeName(name string) string {
	switch name {
	case "", "single", "single_torsion", "small":
		return "single_torsion"
	case "hierarchical", "local", "backbone_torsion":
		return "hierarchical"
	case "pivot", "pivot_coupled":
		return "pivot_coupled"
	default:
		return name
	}
}
