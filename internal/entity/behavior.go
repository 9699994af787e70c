package entity

import (
	"math"
	"math/rand"
	"time"

	"github.com/annel0/blockverse/internal/physics"
	"github.com/annel0/blockverse/internal/vec"
)

// BehaviorKind — вид поведения животного
type BehaviorKind uint8

const (
	BehaviorIdle BehaviorKind = iota
	BehaviorWander
	BehaviorHop
)

// все виды поведения в порядке выбора
var behaviorKinds = [...]BehaviorKind{BehaviorIdle, BehaviorWander, BehaviorHop}

func (k BehaviorKind) String() string {
	switch k {
	case BehaviorIdle:
		return "idle"
	case BehaviorWander:
		return "wander"
	case BehaviorHop:
		return "hop"
	default:
		return "unknown"
	}
}

// Senses содержит то, что животное знает о себе при выборе поведения
type Senses struct {
	Falling      bool
	DistanceHome float64
}

// WanderRadius ограничивает блуждание вокруг дома
const WanderRadius = 8.0

// Priority возвращает вес поведения в текущей ситуации
func (k BehaviorKind) Priority(s Senses) float64 {
	switch k {
	case BehaviorIdle:
		return 1
	case BehaviorWander:
		if s.Falling {
			return 0
		}
		// Чем дальше от дома, тем сильнее тянет вернуться
		return 0.8 + math.Min(s.DistanceHome/WanderRadius, 1)
	case BehaviorHop:
		if s.Falling {
			return 0
		}
		return 0.2
	default:
		return 0
	}
}

// MinDuration возвращает минимальное время, которое поведение остаётся активным
func (k BehaviorKind) MinDuration() time.Duration {
	switch k {
	case BehaviorIdle:
		return 2 * time.Second
	case BehaviorWander:
		return 3 * time.Second
	case BehaviorHop:
		return 500 * time.Millisecond
	default:
		return time.Second
	}
}

// AI управляет поведением животного
type AI struct {
	Kind    BehaviorKind
	Elapsed time.Duration
	Home    vec.Vec2Float
	Target  vec.Vec2Float
	Yaw     float64

	rng *rand.Rand
}

// NewAI создаёт мозг животного с домом в указанной точке (X, Z)
func NewAI(seed int64, home vec.Vec2Float) *AI {
	return &AI{
		Kind:   BehaviorIdle,
		Home:   home,
		Target: home,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Update выбирает поведение и возвращает движение на этот тик.
// pos — текущая позиция (X, Z).
func (a *AI) Update(pos vec.Vec2Float, falling bool, dt time.Duration) physics.Input {
	a.Elapsed += dt

	if a.Elapsed >= a.Kind.MinDuration() {
		senses := Senses{Falling: falling, DistanceHome: pos.DistanceTo(a.Home)}
		a.enter(a.choose(senses))
	}

	switch a.Kind {
	case BehaviorWander:
		d := a.Target.Sub(pos)
		if d.Length() < 0.5 {
			return physics.Input{Yaw: a.Yaw}
		}
		a.Yaw = yawTowards(d)
		return physics.Input{Forward: true, Yaw: a.Yaw}
	case BehaviorHop:
		return physics.Input{Forward: true, Jump: true, Yaw: a.Yaw}
	default:
		return physics.Input{Yaw: a.Yaw}
	}
}

// choose выбирает поведение с вероятностью, пропорциональной приоритету
func (a *AI) choose(s Senses) BehaviorKind {
	var weights [len(behaviorKinds)]float64
	total := 0.0
	for i, k := range behaviorKinds {
		weights[i] = k.Priority(s)
		total += weights[i]
	}
	if total <= 0 {
		return BehaviorIdle
	}

	roll := a.rng.Float64() * total
	for i, k := range behaviorKinds {
		if roll < weights[i] {
			return k
		}
		roll -= weights[i]
	}
	return behaviorKinds[len(behaviorKinds)-1]
}

// enter начинает поведение заново (даже если оно не сменилось)
func (a *AI) enter(k BehaviorKind) {
	a.Kind = k
	a.Elapsed = 0

	switch k {
	case BehaviorWander:
		angle := a.rng.Float64() * 2 * math.Pi
		dist := a.rng.Float64() * WanderRadius
		a.Target = a.Home.Add(vec.Vec2Float{X: math.Cos(angle) * dist, Y: math.Sin(angle) * dist})
	case BehaviorHop:
		a.Yaw = a.rng.Float64() * 2 * math.Pi
	}
}

// yawTowards возвращает yaw, при котором движение вперёд идёт вдоль d
func yawTowards(d vec.Vec2Float) float64 {
	return math.Atan2(-d.X, -d.Y)
}
