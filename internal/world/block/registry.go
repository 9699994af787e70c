package block

import "sync"

// BlockID представляет идентификатор блока
type BlockID = uint16

// Константы ID блоков
const (
	AirBlockID    BlockID = iota // 0 — пустота
	StoneBlockID                 // 1
	DirtBlockID                  // 2
	GrassBlockID                 // 3
	SandBlockID                  // 4
	WoodBlockID                  // 5
	LeavesBlockID                // 6
	GlassBlockID                 // 7
	WaterBlockID                 // 8

	// Специальные блоки (начиная с 1000)
	BedrockBlockID BlockID = 1000
)

// Definition описывает свойства типа блока
type Definition struct {
	ID    BlockID
	Name  string
	Solid bool // блокирует движение и луч
}

var (
	registry   = make(map[BlockID]Definition)
	registryMu sync.RWMutex
)

func init() {
	for _, def := range []Definition{
		{ID: AirBlockID, Name: "air", Solid: false},
		{ID: StoneBlockID, Name: "stone", Solid: true},
		{ID: DirtBlockID, Name: "dirt", Solid: true},
		{ID: GrassBlockID, Name: "grass", Solid: true},
		{ID: SandBlockID, Name: "sand", Solid: true},
		{ID: WoodBlockID, Name: "wood", Solid: true},
		{ID: LeavesBlockID, Name: "leaves", Solid: true},
		{ID: GlassBlockID, Name: "glass", Solid: true},
		{ID: WaterBlockID, Name: "water", Solid: false},
		{ID: BedrockBlockID, Name: "bedrock", Solid: true},
	} {
		Register(def)
	}
}

// Register добавляет описание блока в регистр
func Register(def Definition) {
	registryMu.Lock()
	registry[def.ID] = def
	registryMu.Unlock()
}

// Get возвращает описание для указанного ID
func Get(id BlockID) (Definition, bool) {
	registryMu.RLock()
	def, exists := registry[id]
	registryMu.RUnlock()
	return def, exists
}

// IsValidBlockID проверяет, является ли ID допустимым идентификатором блока
func IsValidBlockID(id BlockID) bool {
	_, exists := Get(id)
	return exists
}

// IsSolid сообщает, блокирует ли блок движение.
// Незарегистрированные ненулевые ID считаются твёрдыми.
func IsSolid(id BlockID) bool {
	if id == AirBlockID {
		return false
	}
	def, exists := Get(id)
	if !exists {
		return true
	}
	return def.Solid
}

// Name возвращает имя блока или "unknown"
func Name(id BlockID) string {
	if def, ok := Get(id); ok {
		return def.Name
	}
	return "unknown"
}
