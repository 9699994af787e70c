package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/annel0/blockverse/internal/fixed"
	"github.com/annel0/blockverse/internal/physics"
	"github.com/annel0/blockverse/internal/vec"
)

// ErrMalformed означает, что сообщение не удалось разобрать
var ErrMalformed = errors.New("malformed message")

// Кодирование использует проводной формат protobuf. Поля пишутся в порядке
// номеров, нулевые скаляры пропускаются, поэтому одинаковые сообщения
// всегда дают одинаковые байты.

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	return appendVarint(b, num, protowire.EncodeZigZag(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarint(b, num, 1)
}

func appendFixed64(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	return appendFixed64(b, num, math.Float64bits(v))
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendFixedVec(b []byte, num protowire.Number, v fixed.Vec3) []byte {
	var m []byte
	m = appendSint(m, 1, int64(v.X))
	m = appendSint(m, 2, int64(v.Y))
	m = appendSint(m, 3, int64(v.Z))
	return appendBytes(b, num, m)
}

func appendBlockVec(b []byte, num protowire.Number, v vec.Vec3) []byte {
	var m []byte
	m = appendSint(m, 1, v.X)
	m = appendSint(m, 2, v.Y)
	m = appendSint(m, 3, v.Z)
	return appendBytes(b, num, m)
}

func appendFloatVec(b []byte, num protowire.Number, v vec.Vec3Float) []byte {
	var m []byte
	m = appendDouble(m, 1, v.X)
	m = appendDouble(m, 2, v.Y)
	m = appendDouble(m, 3, v.Z)
	return appendBytes(b, num, m)
}

// field хранит одно разобранное поле сообщения
type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	b   []byte
}

func (f field) sint() int64 { return protowire.DecodeZigZag(f.u) }
func (f field) double() float64 { return math.Float64frombits(f.u) }
func (f field) boolean() bool { return f.u != 0 }
func (f field) str() string { return string(f.b) }
func (f field) is(t protowire.Type) bool { return f.typ == t }

// forEachField обходит поля сообщения; неизвестные поля передаются как есть
func forEachField(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u = uint64(v)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func wrongType(f field) error {
	return fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, f.num, f.typ)
}

func decodeFixedVec(b []byte) (fixed.Vec3, error) {
	var v fixed.Vec3
	err := forEachField(b, func(f field) error {
		if !f.is(protowire.VarintType) {
			return wrongType(f)
		}
		switch f.num {
		case 1:
			v.X = fixed.Coord(f.sint())
		case 2:
			v.Y = fixed.Coord(f.sint())
		case 3:
			v.Z = fixed.Coord(f.sint())
		}
		return nil
	})
	return v, err
}

func decodeBlockVec(b []byte) (vec.Vec3, error) {
	var v vec.Vec3
	err := forEachField(b, func(f field) error {
		if !f.is(protowire.VarintType) {
			return wrongType(f)
		}
		switch f.num {
		case 1:
			v.X = f.sint()
		case 2:
			v.Y = f.sint()
		case 3:
			v.Z = f.sint()
		}
		return nil
	})
	return v, err
}

func decodeFloatVec(b []byte) (vec.Vec3Float, error) {
	var v vec.Vec3Float
	err := forEachField(b, func(f field) error {
		if !f.is(protowire.Fixed64Type) {
			return wrongType(f)
		}
		switch f.num {
		case 1:
			v.X = f.double()
		case 2:
			v.Y = f.double()
		case 3:
			v.Z = f.double()
		}
		return nil
	})
	return v, err
}

// EncodePlayerEvent сериализует сообщение клиента
func EncodePlayerEvent(e *PlayerEvent) []byte {
	var b []byte
	b = appendVarint(b, 1, e.Seq)
	b = appendFixedVec(b, 2, e.Pos)
	b = appendDouble(b, 3, e.Yaw)
	b = appendDouble(b, 4, e.Pitch)
	b = appendVarint(b, 5, uint64(e.Input))

	for _, edit := range e.Edits {
		var m []byte
		m = appendBlockVec(m, 1, edit.Pos)
		m = appendVarint(m, 2, uint64(edit.Block))
		m = appendVarint(m, 3, uint64(edit.Mode))
		b = appendBytes(b, 6, m)
	}

	for _, a := range e.Actions {
		var m []byte
		m = appendFixedVec(m, 1, a.Origin)
		m = appendFloatVec(m, 2, a.Dir)
		m = appendVarint(m, 3, uint64(a.Mode))
		m = appendVarint(m, 4, uint64(a.Block))
		b = appendBytes(b, 7, m)
	}

	return b
}

// DecodePlayerEvent разбирает сообщение клиента
func DecodePlayerEvent(b []byte) (*PlayerEvent, error) {
	e := &PlayerEvent{}
	err := forEachField(b, func(f field) error {
		switch f.num {
		case 1:
			if !f.is(protowire.VarintType) {
				return wrongType(f)
			}
			e.Seq = f.u
		case 2:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			pos, err := decodeFixedVec(f.b)
			if err != nil {
				return err
			}
			e.Pos = pos
		case 3:
			if !f.is(protowire.Fixed64Type) {
				return wrongType(f)
			}
			e.Yaw = f.double()
		case 4:
			if !f.is(protowire.Fixed64Type) {
				return wrongType(f)
			}
			e.Pitch = f.double()
		case 5:
			if !f.is(protowire.VarintType) {
				return wrongType(f)
			}
			e.Input = uint32(f.u)
		case 6:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			edit, err := decodeBlockEdit(f.b)
			if err != nil {
				return err
			}
			e.Edits = append(e.Edits, edit)
		case 7:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			a, err := decodeAction(f.b)
			if err != nil {
				return err
			}
			e.Actions = append(e.Actions, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func decodeBlockEdit(b []byte) (BlockEdit, error) {
	var edit BlockEdit
	err := forEachField(b, func(f field) error {
		switch f.num {
		case 1:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			pos, err := decodeBlockVec(f.b)
			edit.Pos = pos
			return err
		case 2:
			edit.Block = uint16(f.u)
		case 3:
			edit.Mode = EditMode(f.u)
		}
		return nil
	})
	return edit, err
}

func decodeAction(b []byte) (Action, error) {
	var a Action
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			a.Origin, err = decodeFixedVec(f.b)
		case 2:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			a.Dir, err = decodeFloatVec(f.b)
		case 3:
			a.Mode = EditMode(f.u)
		case 4:
			a.Block = uint16(f.u)
		}
		return err
	})
	return a, err
}

// EncodeGameEvent сериализует снимок для клиента
func EncodeGameEvent(e *GameEvent) []byte {
	var b []byte
	b = appendVarint(b, 1, e.Tick)
	b = appendVarint(b, 2, e.You)

	for _, s := range e.Entities {
		var m []byte
		m = appendVarint(m, 1, s.ID)
		m = appendVarint(m, 2, uint64(s.Type))
		m = appendFixedVec(m, 3, s.Pos)
		m = appendDouble(m, 4, s.Yaw)
		m = appendDouble(m, 5, s.Pitch)
		m = appendBool(m, 6, s.Falling)
		b = appendBytes(b, 3, m)
	}

	for _, c := range e.Chunks {
		var m []byte
		m = appendBlockVec(m, 1, c.Pos)
		m = appendFixed64(m, 2, c.Hash)
		m = appendBytes(m, 3, c.Data)
		m = appendBool(m, 4, c.Compressed)
		b = appendBytes(b, 4, m)
	}

	for _, u := range e.Updates {
		var m []byte
		m = appendVarint(m, 1, u.Index)
		m = appendBlockVec(m, 2, u.Pos)
		m = appendVarint(m, 3, uint64(u.Block))
		b = appendBytes(b, 5, m)
	}

	if c := e.Constants; c != nil {
		var m []byte
		m = appendDouble(m, 1, c.Gravity)
		m = appendDouble(m, 2, c.TerminalHeight)
		m = appendDouble(m, 3, c.WalkSpeed)
		m = appendDouble(m, 4, c.JumpSpeed)
		m = appendDouble(m, 5, c.Radius)
		m = appendDouble(m, 6, c.Height)
		b = appendBytes(b, 6, m)
	}

	b = appendBool(b, 7, e.Disconnect)
	b = appendString(b, 8, e.Reason)
	return b
}

// DecodeGameEvent разбирает снимок
func DecodeGameEvent(b []byte) (*GameEvent, error) {
	e := &GameEvent{}
	err := forEachField(b, func(f field) error {
		switch f.num {
		case 1:
			e.Tick = f.u
		case 2:
			e.You = f.u
		case 3:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			s, err := decodeEntitySnapshot(f.b)
			if err != nil {
				return err
			}
			e.Entities = append(e.Entities, s)
		case 4:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			c, err := decodeChunkPayload(f.b)
			if err != nil {
				return err
			}
			e.Chunks = append(e.Chunks, c)
		case 5:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			u, err := decodeBlockUpdate(f.b)
			if err != nil {
				return err
			}
			e.Updates = append(e.Updates, u)
		case 6:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			c, err := decodeConstants(f.b)
			if err != nil {
				return err
			}
			e.Constants = c
		case 7:
			e.Disconnect = f.boolean()
		case 8:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			e.Reason = f.str()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func decodeEntitySnapshot(b []byte) (EntitySnapshot, error) {
	var s EntitySnapshot
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			s.ID = f.u
		case 2:
			s.Type = uint16(f.u)
		case 3:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			s.Pos, err = decodeFixedVec(f.b)
		case 4:
			s.Yaw = f.double()
		case 5:
			s.Pitch = f.double()
		case 6:
			s.Falling = f.boolean()
		}
		return err
	})
	return s, err
}

func decodeChunkPayload(b []byte) (ChunkPayload, error) {
	var c ChunkPayload
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			c.Pos, err = decodeBlockVec(f.b)
		case 2:
			c.Hash = f.u
		case 3:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			c.Data = append([]byte(nil), f.b...)
		case 4:
			c.Compressed = f.boolean()
		}
		return err
	})
	return c, err
}

func decodeBlockUpdate(b []byte) (BlockUpdate, error) {
	var u BlockUpdate
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			u.Index = f.u
		case 2:
			if !f.is(protowire.BytesType) {
				return wrongType(f)
			}
			u.Pos, err = decodeBlockVec(f.b)
		case 3:
			u.Block = uint16(f.u)
		}
		return err
	})
	return u, err
}

func decodeConstants(b []byte) (*physics.Constants, error) {
	c := &physics.Constants{}
	err := forEachField(b, func(f field) error {
		if !f.is(protowire.Fixed64Type) {
			return wrongType(f)
		}
		switch f.num {
		case 1:
			c.Gravity = f.double()
		case 2:
			c.TerminalHeight = f.double()
		case 3:
			c.WalkSpeed = f.double()
		case 4:
			c.JumpSpeed = f.double()
		case 5:
			c.Radius = f.double()
		case 6:
			c.Height = f.double()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
