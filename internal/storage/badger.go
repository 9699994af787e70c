package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/annel0/blockverse/internal/logging"
	"github.com/dgraph-io/badger/v3"
)

// ErrNotReady возвращается при обращении к закрытому хранилищу
var ErrNotReady = errors.New("хранилище не готово")

// Badger — файл сохранения поверх BadgerDB
type Badger struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadger открывает (или создаёт) базу в каталоге dataPath/world
func NewBadger(dataPath string) (*Badger, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = badgerLogger{logging.GetStorageLogger()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &Badger{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// badgerLogger направляет сообщения BadgerDB в логгер хранилища.
// Info от Badger слишком болтлив и понижается до Debug.
type badgerLogger struct {
	l *logging.Logger
}

func (b badgerLogger) Errorf(f string, args ...interface{})   { b.l.Error("badger: "+f, args...) }
func (b badgerLogger) Warningf(f string, args ...interface{}) { b.l.Warn("badger: "+f, args...) }
func (b badgerLogger) Infof(f string, args ...interface{})    { b.l.Debug("badger: "+f, args...) }
func (b badgerLogger) Debugf(f string, args ...interface{})   { b.l.Trace("badger: "+f, args...) }

// Close закрывает хранилище данных
func (b *Badger) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.isReady {
		return nil
	}

	b.isReady = false
	return b.db.Close()
}

// Read читает значение по ключу
func (b *Badger) Read(key Key) ([]byte, bool, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if !b.isReady {
		return nil, false, ErrNotReady
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	return data, true, nil
}

// Write сохраняет значение по ключу
func (b *Badger) Write(key Key, data []byte) error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if !b.isReady {
		return ErrNotReady
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key.String()), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	return nil
}
