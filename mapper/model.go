package mapper

import "github.com/yaroher/protoc-gen-ue-plain/ir"

// Config — разобранная конфигурация маппинга.
// Парсинг параметров плагина и загрузка файлов переопределений
// выполняются снаружи (см. пакет generator).
type Config struct {
	// ConvertUnsignedForBlueprint — заменять uint32/uint64 на int32/int64
	// ради совместимости с Blueprint
	ConvertUnsignedForBlueprint bool
	// IncludePackageInNames — включать сегменты пакета в UE-имя типа.
	// Вложенные namespace-скоупы и свёртка пакета в имя взаимоисключающи.
	IncludePackageInNames bool
	// ReservedIdentifiers заменяет встроенный набор зарезервированных имён
	ReservedIdentifiers []string
	// ExtraReservedIdentifiers дополняет набор зарезервированных имён
	ExtraReservedIdentifiers []string
	// RenameOverrides — явные переименования по полному proto-имени
	RenameOverrides map[string]string
}

// EnumValue — значение UE-enum
type EnumValue struct {
	Name   string
	Number int32
	Source *ir.EnumValue
}

// Enum — UE-представление enum-типа
type Enum struct {
	Name          string
	FullName      string
	UEName        string
	Values        []*EnumValue
	BlueprintType bool
	Specifiers    []string
	Metadata      map[string]string
	Category      string
	Source        *ir.Enum
}

// OptionalWrapper — синтезированная структура-обёртка с флагом присутствия.
// Дедуплицируется по базовому типу в пределах файла.
type OptionalWrapper struct {
	BaseType              string
	UEName                string
	IsSetMember           string
	ValueMember           string
	BlueprintType         bool
	ValueBlueprintExposed bool
}

// OneofCase — один вариант oneof-обёртки
type OneofCase struct {
	Name       string
	UECaseName string
	Field      *Field
}

// OneofWrapper — синтезированная структура для oneof-группы.
// Плоские optional-поля в владеющей структуре сохраняются, обёртка
// существует параллельно им.
type OneofWrapper struct {
	Name     string
	FullName string
	UEName   string
	Cases    []*OneofCase
	Source   *ir.Oneof
}

// Field — UE-представление поля
type Field struct {
	Name        string
	Number      int32
	BaseType    string
	UEType      string
	Kind        ir.FieldKind
	Cardinality ir.Cardinality
	IsOptional  bool
	IsRepeated  bool
	IsMap       bool
	// Container — обёртка контейнера (TArray, TMap или optional-обёртка)
	Container    string
	MapKeyType   string
	MapValueType string
	// MapKeyScalar/MapValueScalar — wire-имена типов ключа/значения map
	MapKeyScalar   string
	MapValueScalar string
	OneofGroup     string
	JSONName       string
	DefaultValue   string

	BlueprintExposed  bool
	BlueprintReadOnly bool
	Specifiers        []string
	Metadata          map[string]string
	Category          string

	Source          *ir.Field
	OptionalWrapper *OptionalWrapper
	// DependentFiles — файлы, типы которых использует поле (кроме своего)
	DependentFiles []string
}

// Message — UE-представление message-типа
type Message struct {
	Name           string
	FullName       string
	UEName         string
	Fields         []*Field
	NestedMessages []*Message
	NestedEnums    []*Enum
	Oneofs         []*OneofWrapper
	BlueprintType  bool
	Specifiers     []string
	Metadata       map[string]string
	Category       string
	Source         *ir.Message
}

// File — UE-представление proto-файла
type File struct {
	Name    string
	Package string
	// FoldPackage — сегменты пакета свёрнуты в имена типов;
	// иначе renderer открывает namespace на каждый сегмент
	FoldPackage      bool
	Messages         []*Message
	Enums            []*Enum
	OptionalWrappers []*OptionalWrapper
	Source           *ir.File
}
