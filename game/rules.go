package game

import "fmt"

// Rules 世界规则：边界、速度上限、碰撞半径
type Rules struct {
	MinBound        float32 `json:"min_bound" toml:"min_bound"`
	MaxBound        float32 `json:"max_bound" toml:"max_bound"`
	MaxVelocity     float32 `json:"max_velocity" toml:"max_velocity"`
	CollisionRadius float32 `json:"collision_radius" toml:"collision_radius"`
}

func DefaultRules() Rules {
	return Rules{
		MinBound:        -100,
		MaxBound:        100,
		MaxVelocity:     10,
		CollisionRadius: 10,
	}
}

func (r Rules) Validate() error {
	if !(r.MinBound < r.MaxBound) {
		return fmt.Errorf("rules: min_bound %v must be below max_bound %v", r.MinBound, r.MaxBound)
	}
	if !(r.MaxVelocity > 0) {
		return fmt.Errorf("rules: max_velocity must be positive, got %v", r.MaxVelocity)
	}
	if !(r.CollisionRadius > 0) {
		return fmt.Errorf("rules: collision_radius must be positive, got %v", r.CollisionRadius)
	}
	return nil
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
