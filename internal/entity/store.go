// Package entity содержит хранилище компонентов сущностей и поведение ИИ.
package entity

import (
	"reflect"
	"sort"
)

// ID — идентификатор сущности
type ID uint64

// Store хранит компоненты сущностей по паре (ID, тип компонента).
// Не потокобезопасен: доступ сериализуется владельцем.
type Store struct {
	nextID     ID
	alive      map[ID]struct{}
	components map[reflect.Type]map[ID]any
}

// NewStore создаёт пустое хранилище
func NewStore() *Store {
	return &Store{
		nextID:     1,
		alive:      make(map[ID]struct{}),
		components: make(map[reflect.Type]map[ID]any),
	}
}

// Create регистрирует новую сущность без компонентов
func (s *Store) Create() ID {
	id := s.nextID
	s.nextID++
	s.alive[id] = struct{}{}
	return id
}

// Exists проверяет, зарегистрирована ли сущность
func (s *Store) Exists(id ID) bool {
	_, ok := s.alive[id]
	return ok
}

// Count возвращает количество сущностей
func (s *Store) Count() int {
	return len(s.alive)
}

// Remove удаляет сущность вместе со всеми её компонентами
func (s *Store) Remove(id ID) {
	delete(s.alive, id)
	for _, byID := range s.components {
		delete(byID, id)
	}
}

// IDs возвращает все сущности по возрастанию ID
func (s *Store) IDs() []ID {
	ids := make([]ID, 0, len(s.alive))
	for id := range s.alive {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Set прикрепляет компонент к сущности, заменяя прежний того же типа
func Set[T any](s *Store, id ID, c *T) {
	if !s.Exists(id) {
		return
	}
	t := typeOf[T]()
	byID, ok := s.components[t]
	if !ok {
		byID = make(map[ID]any)
		s.components[t] = byID
	}
	byID[id] = c
}

// Get возвращает компонент сущности
func Get[T any](s *Store, id ID) (*T, bool) {
	v, ok := s.components[typeOf[T]()][id]
	if !ok {
		return nil, false
	}
	return v.(*T), true
}

// Has проверяет наличие компонента
func Has[T any](s *Store, id ID) bool {
	_, ok := s.components[typeOf[T]()][id]
	return ok
}

// Delete открепляет компонент
func Delete[T any](s *Store, id ID) {
	delete(s.components[typeOf[T]()], id)
}

// Each обходит сущности с компонентом T по возрастанию ID
func Each[T any](s *Store, fn func(id ID, c *T)) {
	byID := s.components[typeOf[T]()]
	ids := make([]ID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		fn(id, byID[id].(*T))
	}
}
