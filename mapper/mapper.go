package mapper

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/yaroher/protoc-gen-ue-plain/ir"
	"github.com/yaroher/protoc-gen-ue-plain/logger"
	"go.uber.org/zap"
)

// ueScalarTypes — фиксированная таблица скалярных типов wire → UE.
// Варианты кодирования с общим представлением схлопываются в один тип.
var ueScalarTypes = map[string]string{
	"double":   "double",
	"float":    "float",
	"int64":    "int64",
	"uint64":   "uint64",
	"int32":    "int32",
	"fixed64":  "uint64",
	"fixed32":  "uint32",
	"bool":     "bool",
	"string":   "FString",
	"bytes":    "TArray<uint8>",
	"uint32":   "uint32",
	"sfixed32": "int32",
	"sfixed64": "int64",
	"sint32":   "int32",
	"sint64":   "int64",
}

const (
	messagePrefix         = "F"
	enumPrefix            = "E"
	optionalWrapperPrefix = "FProtoOptional"
	arrayWrapper          = "TArray"
	mapWrapper            = "TMap"
)

// MappingError — поле нарушает предусловие маппинга
type MappingError struct {
	FieldPath string
	Reason    string
}

func (e MappingError) Error() string {
	return fmt.Sprintf("mapping error at %s: %s", e.FieldPath, e.Reason)
}

// TypeMapper переводит IR в UE-граф типов.
// Таблица дедупликации optional-обёрток локальна для одного MapFile.
type TypeMapper struct {
	config   Config
	resolver *NameResolver

	// typeFileIndex — файл объявления для каждого полного имени типа
	typeFileIndex   map[string]string
	typeIndex       map[string]ir.Type
	registeredFiles map[string]bool

	pkg             string
	currentWrappers map[string]*OptionalWrapper
	wrapperOrder    []string
	currentSuffix   string
	currentFileName string
}

func NewTypeMapper(config Config) *TypeMapper {
	rules := DefaultNamingRules()
	if len(config.ReservedIdentifiers) > 0 {
		rules.ReservedSymbols = make(map[string]bool, len(config.ReservedIdentifiers))
		for _, symbol := range config.ReservedIdentifiers {
			if symbol != "" {
				rules.ReservedSymbols[symbol] = true
			}
		}
	}
	rules = rules.WithOverrides(config.RenameOverrides)
	return &TypeMapper{
		config:          config,
		resolver:        NewNameResolver(rules, config.ExtraReservedIdentifiers...),
		typeFileIndex:   make(map[string]string),
		typeIndex:       make(map[string]ir.Type),
		registeredFiles: make(map[string]bool),
	}
}

// RegisterFiles регистрирует символы файлов; файлы должны идти
// в порядке зависимостей
func (m *TypeMapper) RegisterFiles(files []*ir.File) error {
	for _, file := range files {
		if err := m.RegisterFile(file); err != nil {
			return err
		}
	}
	return nil
}

// RegisterFile регистрирует все типы одного файла в таблице символов
func (m *TypeMapper) RegisterFile(file *ir.File) error {
	if m.registeredFiles[file.Name] {
		return nil
	}
	previous := m.pkg
	m.pkg = file.Package
	defer func() { m.pkg = previous }()

	for _, enum := range file.Enums {
		if err := m.registerEnum(enum, file.Name); err != nil {
			return err
		}
	}
	for _, message := range file.Messages {
		if err := m.registerMessage(message, file.Name); err != nil {
			return err
		}
	}
	m.registeredFiles[file.Name] = true
	return nil
}

// MapFile переводит один нормализованный файл в UE-представление
func (m *TypeMapper) MapFile(file *ir.File) (*File, error) {
	if err := m.RegisterFile(file); err != nil {
		return nil, err
	}
	logger.Debug("map file", zap.String("name", file.Name))

	previousPkg := m.pkg
	previousWrappers := m.currentWrappers
	previousOrder := m.wrapperOrder
	previousSuffix := m.currentSuffix
	previousName := m.currentFileName
	m.pkg = file.Package
	m.currentWrappers = make(map[string]*OptionalWrapper)
	m.wrapperOrder = nil
	m.currentSuffix = sanitizeFileIdentifier(file.Name)
	m.currentFileName = file.Name
	defer func() {
		m.pkg = previousPkg
		m.currentWrappers = previousWrappers
		m.wrapperOrder = previousOrder
		m.currentSuffix = previousSuffix
		m.currentFileName = previousName
	}()

	messages := make([]*Message, 0, len(file.Messages))
	for _, message := range file.Messages {
		mapped, err := m.convertMessage(message)
		if err != nil {
			return nil, err
		}
		messages = append(messages, mapped)
	}
	enums := make([]*Enum, 0, len(file.Enums))
	for _, enum := range file.Enums {
		enums = append(enums, m.convertEnum(enum))
	}

	// обёртки в порядке первого использования, не в порядке map-итерации
	wrappers := lo.Map(m.wrapperOrder, func(baseType string, _ int) *OptionalWrapper {
		return m.currentWrappers[baseType]
	})

	return &File{
		Name:             file.Name,
		Package:          file.Package,
		FoldPackage:      m.config.IncludePackageInNames,
		Messages:         messages,
		Enums:            enums,
		OptionalWrappers: wrappers,
		Source:           file,
	}, nil
}

// Символьная таблица -------------------------------------------------------

func (m *TypeMapper) registerEnum(enum *ir.Enum, fileName string) error {
	if _, err := m.resolveTypeName(enum.FullName, enumPrefix); err != nil {
		return err
	}
	m.typeFileIndex[enum.FullName] = fileName
	m.typeIndex[enum.FullName] = enum
	return nil
}

func (m *TypeMapper) registerMessage(message *ir.Message, fileName string) error {
	if _, err := m.resolveTypeName(message.FullName, messagePrefix); err != nil {
		return err
	}
	m.typeFileIndex[message.FullName] = fileName
	m.typeIndex[message.FullName] = message

	for _, nested := range message.NestedEnums {
		if err := m.registerEnum(nested, fileName); err != nil {
			return err
		}
	}
	for _, nested := range message.NestedMessages {
		if err := m.registerMessage(nested, fileName); err != nil {
			return err
		}
	}
	return nil
}

func (m *TypeMapper) resolveTypeName(fullName, prefix string) (string, error) {
	segments := m.relativeSymbolPath(fullName)
	suffix := strings.Join(lo.Map(segments, func(segment string, _ int) string {
		return pascalCase(segment)
	}), "")
	return m.resolver.Register(fullName, prefix, suffix)
}

func (m *TypeMapper) relativeSymbolPath(fullName string) []string {
	remainder := fullName
	if !m.config.IncludePackageInNames && m.pkg != "" && strings.HasPrefix(fullName, m.pkg+".") {
		remainder = fullName[len(m.pkg)+1:]
	}
	return lo.Filter(strings.Split(remainder, "."), func(segment string, _ int) bool {
		return segment != ""
	})
}

func (m *TypeMapper) lookupSymbol(fullName, fieldPath string) (string, error) {
	name, ok := m.resolver.Lookup(fullName)
	if !ok {
		return "", MappingError{
			FieldPath: fieldPath,
			Reason:    fmt.Sprintf("type %q is not registered in the UE symbol table", fullName),
		}
	}
	return name, nil
}

// Конвертация --------------------------------------------------------------

func (m *TypeMapper) convertEnum(enum *ir.Enum) *Enum {
	ueName, _ := m.resolver.Lookup(enum.FullName)
	unreal := unrealOptions(enum.Options)
	values := lo.Map(enum.Values, func(value *ir.EnumValue, _ int) *EnumValue {
		return &EnumValue{Name: value.Name, Number: value.Number, Source: value}
	})
	return &Enum{
		Name:          enum.Name,
		FullName:      enum.FullName,
		UEName:        ueName,
		Values:        values,
		BlueprintType: asBool(unreal["blueprint_type"], true),
		Specifiers:    asStringList(unreal["specifiers"]),
		Metadata:      asStringMap(unreal["meta"]),
		Category:      asString(unreal["category"]),
		Source:        enum,
	}
}

func (m *TypeMapper) convertMessage(message *ir.Message) (*Message, error) {
	ueName, err := m.lookupSymbol(message.FullName, message.FullName)
	if err != nil {
		return nil, err
	}
	unreal := unrealOptions(message.Options)

	fields := make([]*Field, 0, len(message.Fields))
	fieldMap := make(map[*ir.Field]*Field, len(message.Fields))
	for _, field := range message.Fields {
		mapped, err := m.convertField(field, message)
		if err != nil {
			return nil, err
		}
		fields = append(fields, mapped)
		fieldMap[field] = mapped
	}

	nestedMessages := make([]*Message, 0, len(message.NestedMessages))
	for _, nested := range message.NestedMessages {
		mapped, err := m.convertMessage(nested)
		if err != nil {
			return nil, err
		}
		nestedMessages = append(nestedMessages, mapped)
	}
	nestedEnums := lo.Map(message.NestedEnums, func(nested *ir.Enum, _ int) *Enum {
		return m.convertEnum(nested)
	})

	oneofs := make([]*OneofWrapper, 0, len(message.Oneofs))
	for _, oneof := range message.Oneofs {
		wrapper, err := m.convertOneof(oneof, fieldMap, ueName)
		if err != nil {
			return nil, err
		}
		oneofs = append(oneofs, wrapper)
	}

	return &Message{
		Name:           message.Name,
		FullName:       message.FullName,
		UEName:         ueName,
		Fields:         fields,
		NestedMessages: nestedMessages,
		NestedEnums:    nestedEnums,
		Oneofs:         oneofs,
		BlueprintType:  asBool(unreal["blueprint_type"], true),
		Specifiers:     asStringList(unreal["struct_specifiers"]),
		Metadata:       asStringMap(unreal["meta"]),
		Category:       asString(unreal["category"]),
		Source:         message,
	}, nil
}

func (m *TypeMapper) convertOneof(
	oneof *ir.Oneof,
	fieldMap map[*ir.Field]*Field,
	messageUEName string,
) (*OneofWrapper, error) {
	candidate := messageUEName + pascalCase(oneof.Name) + "Oneof"
	ueName, err := m.resolver.Register(oneof.FullName, candidate, "")
	if err != nil {
		return nil, err
	}
	cases := make([]*OneofCase, 0, len(oneof.Fields))
	for _, field := range oneof.Fields {
		cases = append(cases, &OneofCase{
			Name:       field.Name,
			UECaseName: ueName + pascalCase(field.Name) + "Case",
			Field:      fieldMap[field],
		})
	}
	return &OneofWrapper{
		Name:     oneof.Name,
		FullName: oneof.FullName,
		UEName:   ueName,
		Cases:    cases,
		Source:   oneof,
	}, nil
}

func (m *TypeMapper) convertField(field *ir.Field, owner *ir.Message) (*Field, error) {
	fieldPath := owner.FullName + "." + field.Name
	unreal := unrealOptions(field.Options)
	isOneofMember := field.Oneof != ""

	mapped := &Field{
		Name:              field.Name,
		Number:            field.Number,
		Kind:              field.Kind,
		Cardinality:       field.Cardinality,
		OneofGroup:        field.Oneof,
		JSONName:          field.JSONName,
		DefaultValue:      field.DefaultValue,
		BlueprintExposed:  asBool(unreal["blueprint_exposed"], true),
		BlueprintReadOnly: asBool(unreal["blueprint_read_only"], false),
		Specifiers:        asStringList(unreal["specifiers"]),
		Metadata:          asStringMap(unreal["meta"]),
		Category:          asString(unreal["category"]),
		Source:            field,
	}

	if field.Kind == ir.KindMap {
		mapType, keyType, valueType, err := m.mapFieldTypes(field, fieldPath)
		if err != nil {
			return nil, err
		}
		mapped.BaseType = mapType
		mapped.UEType = mapType
		mapped.Container = mapWrapper
		mapped.MapKeyType = keyType
		mapped.MapValueType = valueType
		mapped.MapKeyScalar = field.Map.KeyScalar
		mapped.MapValueScalar = field.Map.ValueScalar
		mapped.IsMap = true
		mapped.DependentFiles = m.mapDependencies(field)
		return mapped, nil
	}

	baseType, err := m.baseTypeForField(field, fieldPath)
	if err != nil {
		return nil, err
	}
	mapped.BaseType = baseType
	mapped.UEType = baseType
	mapped.DependentFiles = m.fieldDependencies(field)

	isRepeated := field.Cardinality == ir.CardinalityRepeated
	isProtoOptional := field.Cardinality == ir.CardinalityOptional && !isOneofMember
	wrapOptional := isProtoOptional || isOneofMember

	switch {
	case isRepeated:
		mapped.IsRepeated = true
		mapped.UEType = fmt.Sprintf("%s<%s>", arrayWrapper, baseType)
		mapped.Container = arrayWrapper
	case wrapOptional:
		wrapper, err := m.ensureOptionalWrapper(baseType, m.baseTypeBlueprintEnabled(field))
		if err != nil {
			return nil, err
		}
		mapped.IsOptional = true
		mapped.UEType = wrapper.UEName
		mapped.Container = wrapper.UEName
		mapped.OptionalWrapper = wrapper
	}
	return mapped, nil
}

func (m *TypeMapper) baseTypeForField(field *ir.Field, fieldPath string) (string, error) {
	switch field.Kind {
	case ir.KindScalar:
		return m.scalarToUEType(field.Scalar, fieldPath)
	case ir.KindMessage, ir.KindEnum:
		return m.lookupSymbol(field.TypeName, fieldPath)
	}
	return "", MappingError{
		FieldPath: fieldPath,
		Reason:    fmt.Sprintf("unsupported field kind %q for base type resolution", field.Kind),
	}
}

func (m *TypeMapper) mapFieldTypes(field *ir.Field, fieldPath string) (string, string, string, error) {
	entry := field.Map
	if entry == nil {
		return "", "", "", MappingError{
			FieldPath: fieldPath,
			Reason:    "map field is missing map entry metadata",
		}
	}
	keyType, err := m.mapKeyType(entry, fieldPath)
	if err != nil {
		return "", "", "", err
	}
	valueType, err := m.mapEntryPartType(entry.ValueKind, entry.ValueScalar, entry.ValueTypeName, fieldPath)
	if err != nil {
		return "", "", "", err
	}
	mapType := fmt.Sprintf("%s<%s, %s>", mapWrapper, keyType, valueType)
	return mapType, keyType, valueType, nil
}

// mapKeyType проверяет ограничение на тип ключа: строка, bool, целые
// либо enum; всё остальное — MappingError, не крэш
func (m *TypeMapper) mapKeyType(entry *ir.MapEntry, fieldPath string) (string, error) {
	switch entry.KeyKind {
	case ir.KindMessage:
		return "", MappingError{
			FieldPath: fieldPath,
			Reason:    "map key may not be a message type",
		}
	case ir.KindEnum:
		return m.lookupSymbol(entry.KeyTypeName, fieldPath)
	}
	switch entry.KeyScalar {
	case "float", "double":
		return "", MappingError{
			FieldPath: fieldPath,
			Reason:    fmt.Sprintf("map key may not be floating-point (%s)", entry.KeyScalar),
		}
	case "bytes":
		return "", MappingError{
			FieldPath: fieldPath,
			Reason:    "map key may not be bytes",
		}
	}
	return m.scalarToUEType(entry.KeyScalar, fieldPath)
}

func (m *TypeMapper) mapEntryPartType(kind ir.FieldKind, scalar, typeName, fieldPath string) (string, error) {
	switch kind {
	case ir.KindScalar:
		return m.scalarToUEType(scalar, fieldPath)
	case ir.KindMessage, ir.KindEnum:
		return m.lookupSymbol(typeName, fieldPath)
	}
	return "", MappingError{
		FieldPath: fieldPath,
		Reason:    fmt.Sprintf("unsupported map part kind %q", kind),
	}
}

func (m *TypeMapper) scalarToUEType(scalar, fieldPath string) (string, error) {
	ueType, ok := ueScalarTypes[scalar]
	if !ok {
		// фиксированная таблица покрывает все wire-типы, сюда попадать не должны
		return "", MappingError{
			FieldPath: fieldPath,
			Reason:    fmt.Sprintf("unsupported scalar type %q", scalar),
		}
	}
	if m.config.ConvertUnsignedForBlueprint {
		switch ueType {
		case "uint32":
			return "int32", nil
		case "uint64":
			return "int64", nil
		}
	}
	return ueType, nil
}

// Optional-обёртки ---------------------------------------------------------

func (m *TypeMapper) ensureOptionalWrapper(baseType string, valueBlueprintType bool) (*OptionalWrapper, error) {
	if wrapper, ok := m.currentWrappers[baseType]; ok {
		if !valueBlueprintType {
			wrapper.BlueprintType = false
			wrapper.ValueBlueprintExposed = false
		}
		return wrapper, nil
	}
	candidate := m.composeOptionalWrapperName(baseType)
	ueName, err := m.resolver.Register("wrapper:"+m.currentFileName+":"+baseType, candidate, "")
	if err != nil {
		return nil, err
	}
	wrapper := &OptionalWrapper{
		BaseType:              baseType,
		UEName:                ueName,
		IsSetMember:           "bIsSet",
		ValueMember:           "Value",
		BlueprintType:         valueBlueprintType,
		ValueBlueprintExposed: valueBlueprintType,
	}
	m.currentWrappers[baseType] = wrapper
	m.wrapperOrder = append(m.wrapperOrder, baseType)
	return wrapper, nil
}

// baseTypeBlueprintEnabled: blueprint_type=false у целевого типа гасит
// blueprint-экспонирование его обёртки
func (m *TypeMapper) baseTypeBlueprintEnabled(field *ir.Field) bool {
	if field.Kind != ir.KindMessage && field.Kind != ir.KindEnum {
		return true
	}
	switch t := m.typeIndex[field.TypeName].(type) {
	case *ir.Message:
		return asBool(unrealOptions(t.Options)["blueprint_type"], true)
	case *ir.Enum:
		return asBool(unrealOptions(t.Options)["blueprint_type"], true)
	}
	return true
}

func (m *TypeMapper) composeOptionalWrapperName(baseType string) string {
	pascal := pascalCase(sanitizeIdentifier(baseType, "Value"))
	if m.currentSuffix != "" {
		return optionalWrapperPrefix + m.currentSuffix + pascal
	}
	return optionalWrapperPrefix + pascal
}

// Зависимости --------------------------------------------------------------

func (m *TypeMapper) fieldDependencies(field *ir.Field) []string {
	if field.Kind != ir.KindMessage && field.Kind != ir.KindEnum {
		return nil
	}
	return m.dependencyFilesFor(field.TypeName)
}

func (m *TypeMapper) mapDependencies(field *ir.Field) []string {
	var names []string
	if field.Map.KeyTypeName != "" {
		names = append(names, field.Map.KeyTypeName)
	}
	if field.Map.ValueTypeName != "" {
		names = append(names, field.Map.ValueTypeName)
	}
	var files []string
	for _, name := range names {
		files = append(files, m.dependencyFilesFor(name)...)
	}
	files = lo.Uniq(files)
	sort.Strings(files)
	return files
}

func (m *TypeMapper) dependencyFilesFor(typeName string) []string {
	fileName, ok := m.typeFileIndex[typeName]
	if !ok || fileName == m.currentFileName {
		return nil
	}
	return []string{fileName}
}

// Опции --------------------------------------------------------------------

// unrealOptions достаёт известный подмножество-bag "unreal";
// остальные ключи проходят мимо не глядя
func unrealOptions(options ir.OptionBag) map[string]any {
	for key, value := range options {
		if key != "unreal" && !strings.HasSuffix(key, ".unreal]") {
			continue
		}
		if sub, ok := value.(map[string]any); ok {
			return sub
		}
	}
	return map[string]any{}
}

func asBool(value any, fallback bool) bool {
	switch v := value.(type) {
	case nil:
		return fallback
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	case float64:
		return v != 0
	}
	return fallback
}

func asString(value any) string {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func asStringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	return lo.FilterMap(items, func(item any, _ int) (string, bool) {
		s, ok := item.(string)
		return s, ok && s != ""
	})
}

func asStringMap(value any) map[string]string {
	raw, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	result := make(map[string]string, len(raw))
	for key, item := range raw {
		if s, ok := item.(string); ok && key != "" {
			result[key] = s
		}
	}
	return result
}

// Идентификаторы -----------------------------------------------------------

var (
	nonIdentifierChars = regexp.MustCompile(`[^0-9A-Za-z_]`)
	underscoreRuns     = regexp.MustCompile(`_+`)
	pathSeparators     = regexp.MustCompile(`[\\/]+`)
)

func sanitizeIdentifier(raw, fallback string) string {
	sanitized := nonIdentifierChars.ReplaceAllString(raw, "_")
	sanitized = underscoreRuns.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		return fallback
	}
	if sanitized[0] >= '0' && sanitized[0] <= '9' {
		sanitized = "_" + sanitized
	}
	return sanitized
}

// sanitizeFileIdentifier строит Pascal-суффикс из имени proto-файла,
// чтобы обёртки разных файлов не пересекались по имени
func sanitizeFileIdentifier(protoName string) string {
	if protoName == "" {
		return ""
	}
	base := strings.TrimSuffix(protoName, path.Ext(protoName))
	normalized := pathSeparators.ReplaceAllString(base, "_")
	sanitized := sanitizeIdentifier(normalized, "File")
	pascal := pascalCase(sanitized)
	if pascal == "" {
		pascal = "File"
	}
	if pascal[0] >= '0' && pascal[0] <= '9' {
		pascal = "_" + pascal
	}
	return pascal
}
