package ir

import "fmt"

// FieldKind описывает тип поля в IR
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindEnum
	KindMessage
	KindMap
)

func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindEnum:
		return "enum"
	case KindMessage:
		return "message"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Cardinality описывает кардинальность поля
type Cardinality int

const (
	CardinalityOptional Cardinality = iota
	CardinalityRequired
	CardinalityRepeated
)

func (c Cardinality) String() string {
	switch c {
	case CardinalityOptional:
		return "optional"
	case CardinalityRequired:
		return "required"
	case CardinalityRepeated:
		return "repeated"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// OptionBag — динамический набор опций, прочитанный из дескриптора.
// Значения: string, bool, float64, []any, map[string]any.
// Неизвестные ключи сохраняются как есть и не интерпретируются loader-ом.
type OptionBag map[string]any

// MapEntry — нормализованное представление map-поля.
// Синтетическое map-entry сообщение схлопывается в пару ключ/значение.
type MapEntry struct {
	KeyKind       FieldKind
	KeyScalar     string
	KeyTypeName   string
	ValueKind     FieldKind
	ValueScalar   string
	ValueTypeName string
}

// Field представляет поле сообщения
type Field struct {
	Name        string
	Number      int32
	Cardinality Cardinality
	Kind        FieldKind
	// Scalar — имя скалярного типа из wire-формата (если Kind == KindScalar)
	Scalar string
	// TypeName — полное имя типа для message/enum ссылок
	TypeName string
	// Map — метаданные map-поля (если Kind == KindMap)
	Map *MapEntry
	// DefaultValue — текстовое значение по умолчанию из дескриптора
	DefaultValue string
	JSONName     string
	// Oneof — имя oneof-группы; слабая ссылка, владеет полем только Message
	Oneof string
	// OneofIndex — индекс группы в Message.Oneofs, -1 если поле вне oneof
	OneofIndex int
	// Proto3Optional — поле объявлено с явным optional в proto3
	Proto3Optional bool
	Packed         *bool
	Options        OptionBag
}

// EnumValue представляет значение enum-типа
type EnumValue struct {
	Name    string
	Number  int32
	Options OptionBag
}

// Enum представляет enum-тип
type Enum struct {
	Name     string
	FullName string
	Values   []*EnumValue
	Options  OptionBag
}

// Oneof представляет oneof-группу.
// Fields — слабые ссылки на поля владеющего сообщения, в порядке объявления.
type Oneof struct {
	Name     string
	FullName string
	Fields   []*Field
	Options  OptionBag
}

// Message представляет message-тип.
// Порядок Fields совпадает с порядком объявления и семантически значим.
type Message struct {
	Name           string
	FullName       string
	Fields         []*Field
	NestedMessages []*Message
	NestedEnums    []*Enum
	Oneofs         []*Oneof
	Options        OptionBag
	ReservedNames  []string
}

// File представляет один proto-файл и его объявления
type File struct {
	Name    string
	Package string
	// Dependencies — список имён файлов, на которые разрешено ссылаться
	Dependencies       []string
	PublicDependencies []string
	Messages           []*Message
	Enums              []*Enum
	Options            OptionBag
}

// Type — message или enum, зарегистрированный в индексе типов
type Type interface {
	typeFullName() string
}

func (m *Message) typeFullName() string { return m.FullName }
func (e *Enum) typeFullName() string    { return e.FullName }

// FullNameOf возвращает полное имя зарегистрированного типа
func FullNameOf(t Type) string {
	if t == nil {
		return ""
	}
	return t.typeFullName()
}
