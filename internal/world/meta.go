package world

import (
	"errors"
	"fmt"
	"time"

	"github.com/annel0/blockverse/internal/storage"
	"gopkg.in/yaml.v3"
)

// ErrMetaMismatch: файл сохранения создан другим генератором или сидом
var ErrMetaMismatch = errors.New("world meta mismatch")

// Meta хранит параметры, с которыми был создан файл сохранения
type Meta struct {
	Generator string    `yaml:"generator"`
	Seed      int64     `yaml:"seed"`
	Created   time.Time `yaml:"created"`
}

func metaKey() storage.Key { return storage.MetaKey("world") }

// LoadMeta читает метаданные мира; found=false для нового файла сохранения
func LoadMeta(s storage.Store) (Meta, bool, error) {
	data, found, err := s.Read(metaKey())
	if err != nil || !found {
		return Meta{}, false, err
	}
	var m Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Meta{}, false, fmt.Errorf("decode world meta: %w", err)
	}
	return m, true, nil
}

// SaveMeta записывает метаданные мира
func SaveMeta(s storage.Store, m Meta) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return err
	}
	return s.Write(metaKey(), data)
}

// EnsureMeta сверяет сохранённые метаданные с want или записывает их,
// если файл сохранения новый. Расхождение генератора или сида — ошибка.
func EnsureMeta(s storage.Store, want Meta) (Meta, error) {
	have, found, err := LoadMeta(s)
	if err != nil {
		return Meta{}, err
	}
	if found {
		if have.Generator != want.Generator || have.Seed != want.Seed {
			return have, fmt.Errorf("%w: stored %s/%d, configured %s/%d",
				ErrMetaMismatch, have.Generator, have.Seed, want.Generator, want.Seed)
		}
		return have, nil
	}

	if want.Created.IsZero() {
		want.Created = time.Now().UTC()
	}
	return want, SaveMeta(s, want)
}
