package logging

import (
	"fmt"
	"sort"
	"sync"
)

// Имена компонентов, для которых заводятся отдельные логгеры и файлы
const (
	ComponentNetwork  = "network"
	ComponentGame     = "game"
	ComponentWorld    = "world"
	ComponentStorage  = "storage"
	ComponentClient   = "client"
	ComponentAPI      = "api"
	ComponentEventBus = "eventbus"
)

// LoggerManager хранит логгеры компонентов и переопределения их уровней
type LoggerManager struct {
	mu        sync.RWMutex
	loggers   map[string]*Logger
	overrides map[string]LogLevel
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{
			loggers:   make(map[string]*Logger),
			overrides: make(map[string]LogLevel),
		}
	})
	return globalManager
}

// SetComponentLevels задаёт консольные уровни отдельных компонентов
// (секция logging.components конфигурации). Уровень применяется и к
// уже созданным логгерам, и к тем, что появятся позже.
func (lm *LoggerManager) SetComponentLevels(levels map[string]LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for component, level := range levels {
		lm.overrides[component] = level
		if l, ok := lm.loggers[component]; ok {
			l.setConsoleLevel(level)
		}
	}
}

// componentLevel возвращает переопределённый уровень компонента. Вызывается под lm.mu.
func (lm *LoggerManager) componentLevel(component string) (LogLevel, bool) {
	level, ok := lm.overrides[component]
	return level, ok
}

// GetLogger возвращает логгер компонента, создавая его при первом обращении
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	logger, exists := lm.loggers[component]
	lm.mu.RUnlock()
	if exists {
		return logger, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	// Другая горутина могла успеть создать логгер
	if logger, exists := lm.loggers[component]; exists {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("create logger %s: %w", component, err)
	}
	if level, ok := lm.componentLevel(component); ok {
		logger.setConsoleLevel(level)
	}

	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger возвращает логгер компонента; если файл открыть не удалось,
// компонент пишет только в консоль
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err == nil {
		return logger
	}

	defaultLogger.Warn("Logger %s falls back to console: %v", component, err)
	fallback := NewConsoleLogger(component, defaultLogger.consoleLogger.Writer())

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if level, ok := lm.componentLevel(component); ok {
		fallback.minConsoleLevel = level
	}
	lm.loggers[component] = fallback
	return fallback
}

// CloseAll закрывает файлы всех логгеров компонентов
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var lastErr error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			lastErr = fmt.Errorf("close logger %s: %w", component, err)
		}
	}

	lm.loggers = make(map[string]*Logger)
	return lastErr
}

// Components возвращает отсортированный список созданных логгеров
func (lm *LoggerManager) Components() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// GetComponentLogger вызывает MustGetLogger глобального менеджера
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetNetworkLogger() *Logger  { return GetComponentLogger(ComponentNetwork) }
func GetGameLogger() *Logger     { return GetComponentLogger(ComponentGame) }
func GetWorldLogger() *Logger    { return GetComponentLogger(ComponentWorld) }
func GetStorageLogger() *Logger  { return GetComponentLogger(ComponentStorage) }
func GetClientLogger() *Logger   { return GetComponentLogger(ComponentClient) }
func GetAPILogger() *Logger      { return GetComponentLogger(ComponentAPI) }
func GetEventBusLogger() *Logger { return GetComponentLogger(ComponentEventBus) }
