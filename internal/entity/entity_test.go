package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockverse/internal/vec"
)

func TestStoreComponents(t *testing.T) {
	s := NewStore()
	a := s.Create()
	b := s.Create()
	assert.NotEqual(t, a, b)

	Set(s, a, &Player{Name: "alice"})
	Set(s, b, &Kind{Type: EntityTypeAnimal})

	p, ok := Get[Player](s, a)
	require.True(t, ok)
	assert.Equal(t, "alice", p.Name)

	assert.True(t, Has[Player](s, a))
	assert.False(t, Has[Player](s, b))
	assert.True(t, Has[Kind](s, b))

	// Компонент хранится по указателю
	p.Name = "bob"
	p2, _ := Get[Player](s, a)
	assert.Equal(t, "bob", p2.Name)

	Delete[Player](s, a)
	assert.False(t, Has[Player](s, a))
	assert.True(t, s.Exists(a))
}

func TestStoreRemove(t *testing.T) {
	s := NewStore()
	id := s.Create()
	Set(s, id, &Player{})
	Set(s, id, &Controller{})

	s.Remove(id)
	assert.False(t, s.Exists(id))
	assert.False(t, Has[Player](s, id))
	assert.False(t, Has[Controller](s, id))
	assert.Equal(t, 0, s.Count())

	// Компонент не прикрепляется к удалённой сущности
	Set(s, id, &Player{})
	assert.False(t, Has[Player](s, id))
}

func TestStoreEachOrdered(t *testing.T) {
	s := NewStore()
	var want []ID
	for i := 0; i < 10; i++ {
		id := s.Create()
		if i%2 == 0 {
			Set(s, id, &Kind{Type: EntityTypeAnimal})
			want = append(want, id)
		}
	}

	var got []ID
	Each(s, func(id ID, k *Kind) {
		got = append(got, id)
		assert.Equal(t, EntityTypeAnimal, k.Type)
	})
	assert.Equal(t, want, got)
	assert.Len(t, s.IDs(), 10)
}

func TestBehaviorPriorities(t *testing.T) {
	falling := Senses{Falling: true}
	assert.Equal(t, 0.0, BehaviorWander.Priority(falling))
	assert.Equal(t, 0.0, BehaviorHop.Priority(falling))
	assert.Greater(t, BehaviorIdle.Priority(falling), 0.0)

	near := BehaviorWander.Priority(Senses{DistanceHome: 0})
	far := BehaviorWander.Priority(Senses{DistanceHome: 100})
	assert.Greater(t, far, near)
}

func TestAIKeepsBehaviorForMinDuration(t *testing.T) {
	ai := NewAI(1, vec.Vec2Float{})
	ai.enter(BehaviorHop)

	in := ai.Update(vec.Vec2Float{}, false, 100*time.Millisecond)
	assert.Equal(t, BehaviorHop, ai.Kind)
	assert.True(t, in.Jump)
	assert.True(t, in.Forward)
}

func TestAIFallingOnlyIdles(t *testing.T) {
	ai := NewAI(7, vec.Vec2Float{})
	for i := 0; i < 50; i++ {
		ai.Update(vec.Vec2Float{}, true, 3*time.Second)
		assert.Equal(t, BehaviorIdle, ai.Kind)
	}
}

func TestAISwitchesBehaviors(t *testing.T) {
	ai := NewAI(3, vec.Vec2Float{})
	seen := map[BehaviorKind]bool{}
	for i := 0; i < 500; i++ {
		ai.Update(vec.Vec2Float{}, false, 3*time.Second)
		seen[ai.Kind] = true
	}
	assert.Len(t, seen, 3)
}

func TestAIWanderHeadsToTarget(t *testing.T) {
	ai := NewAI(5, vec.Vec2Float{})
	ai.Kind = BehaviorWander
	ai.Target = vec.Vec2Float{X: 5, Y: 0}

	in := ai.Update(vec.Vec2Float{}, false, 10*time.Millisecond)
	require.True(t, in.Forward)

	dir := in.Direction()
	assert.InDelta(t, 1.0, dir.X, 1e-9)
	assert.InDelta(t, 0.0, dir.Y, 1e-9)

	// У цели животное останавливается
	in = ai.Update(vec.Vec2Float{X: 4.9}, false, 10*time.Millisecond)
	assert.False(t, in.Forward)
}
