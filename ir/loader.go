package ir

import (
	"fmt"
	"strings"

	"github.com/go-faster/jx"
	"github.com/yaroher/protoc-gen-ue-plain/logger"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"
)

// scalarTypeNames — таблица wire-типов, имеющих скалярное представление
var scalarTypeNames = map[descriptorpb.FieldDescriptorProto_Type]string{
	descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:   "double",
	descriptorpb.FieldDescriptorProto_TYPE_FLOAT:    "float",
	descriptorpb.FieldDescriptorProto_TYPE_INT64:    "int64",
	descriptorpb.FieldDescriptorProto_TYPE_UINT64:   "uint64",
	descriptorpb.FieldDescriptorProto_TYPE_INT32:    "int32",
	descriptorpb.FieldDescriptorProto_TYPE_FIXED64:  "fixed64",
	descriptorpb.FieldDescriptorProto_TYPE_FIXED32:  "fixed32",
	descriptorpb.FieldDescriptorProto_TYPE_BOOL:     "bool",
	descriptorpb.FieldDescriptorProto_TYPE_STRING:   "string",
	descriptorpb.FieldDescriptorProto_TYPE_BYTES:    "bytes",
	descriptorpb.FieldDescriptorProto_TYPE_UINT32:   "uint32",
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED32: "sfixed32",
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED64: "sfixed64",
	descriptorpb.FieldDescriptorProto_TYPE_SINT32:   "sint32",
	descriptorpb.FieldDescriptorProto_TYPE_SINT64:   "sint64",
}

type pendingRef struct {
	file     string
	field    string
	typeName string
}

// Loader строит IR из CodeGeneratorRequest.
// Дескрипторы файлов нормализуются один раз и кешируются по имени файла,
// повторные вызовы Load возвращают тот же результат.
type Loader struct {
	req *pluginpb.CodeGeneratorRequest

	files      map[string]*File
	typeIndex  map[string]Type
	typeFile   map[string]string
	mapEntries map[string]*descriptorpb.DescriptorProto
	pending    []pendingRef
	loaded     bool
}

func NewLoader(req *pluginpb.CodeGeneratorRequest) *Loader {
	return &Loader{
		req:        req,
		files:      make(map[string]*File),
		typeIndex:  make(map[string]Type),
		typeFile:   make(map[string]string),
		mapEntries: make(map[string]*descriptorpb.DescriptorProto),
	}
}

// FilesToGenerate возвращает список файлов, для которых запрошена генерация
func (l *Loader) FilesToGenerate() []string {
	return l.req.GetFileToGenerate()
}

// Load нормализует все файлы запроса и возвращает их по имени
func (l *Loader) Load() (map[string]*File, error) {
	if l.loaded {
		return l.files, nil
	}

	requestFiles := make(map[string]bool, len(l.req.GetProtoFile()))
	for _, fileProto := range l.req.GetProtoFile() {
		requestFiles[fileProto.GetName()] = true
	}

	for _, fileProto := range l.req.GetProtoFile() {
		if _, ok := l.files[fileProto.GetName()]; ok {
			continue
		}
		file, err := l.convertFile(fileProto)
		if err != nil {
			return nil, err
		}
		for _, dep := range file.Dependencies {
			if !requestFiles[dep] {
				return nil, MalformedDescriptorError{
					File:   file.Name,
					Reason: fmt.Sprintf("dependency %q is not present in the request", dep),
				}
			}
		}
		l.files[file.Name] = file
	}

	if err := l.resolveReferences(); err != nil {
		return nil, err
	}
	l.loaded = true
	return l.files, nil
}

// Get возвращает нормализованный файл по имени
func (l *Loader) Get(name string) (*File, error) {
	if _, err := l.Load(); err != nil {
		return nil, err
	}
	file, ok := l.files[name]
	if !ok {
		return nil, MalformedDescriptorError{
			File:   name,
			Reason: "descriptor not found in request",
		}
	}
	return file, nil
}

func (l *Loader) convertFile(fileProto *descriptorpb.FileDescriptorProto) (*File, error) {
	logger.Debug("normalize file", zap.String("name", fileProto.GetName()))

	if len(fileProto.GetExtension()) > 0 {
		return nil, UnsupportedFeatureError{
			Feature: "extensions",
			File:    fileProto.GetName(),
		}
	}

	options, err := optionsToBag(fileProto.GetOptions())
	if err != nil {
		return nil, err
	}

	publicDeps := make([]string, 0, len(fileProto.GetPublicDependency()))
	for _, idx := range fileProto.GetPublicDependency() {
		if int(idx) >= len(fileProto.GetDependency()) {
			return nil, MalformedDescriptorError{
				File:   fileProto.GetName(),
				Reason: fmt.Sprintf("public dependency index %d out of range", idx),
			}
		}
		publicDeps = append(publicDeps, fileProto.GetDependency()[idx])
	}

	file := &File{
		Name:               fileProto.GetName(),
		Package:            fileProto.GetPackage(),
		Dependencies:       append([]string(nil), fileProto.GetDependency()...),
		PublicDependencies: publicDeps,
		Options:            options,
	}

	for _, enumProto := range fileProto.GetEnumType() {
		enum, err := l.convertEnum(enumProto, fileProto, nil)
		if err != nil {
			return nil, err
		}
		file.Enums = append(file.Enums, enum)
	}
	for _, messageProto := range fileProto.GetMessageType() {
		message, err := l.convertMessage(messageProto, fileProto, nil)
		if err != nil {
			return nil, err
		}
		file.Messages = append(file.Messages, message)
	}
	return file, nil
}

func (l *Loader) convertEnum(
	enumProto *descriptorpb.EnumDescriptorProto,
	fileProto *descriptorpb.FileDescriptorProto,
	parents []string,
) (*Enum, error) {
	fullName := qualifyName(fileProto.GetPackage(), parents, enumProto.GetName())
	options, err := optionsToBag(enumProto.GetOptions())
	if err != nil {
		return nil, err
	}
	enum := &Enum{
		Name:     enumProto.GetName(),
		FullName: fullName,
		Options:  options,
	}
	l.registerType(fullName, enum, fileProto.GetName())

	for _, valueProto := range enumProto.GetValue() {
		valueOptions, err := optionsToBag(valueProto.GetOptions())
		if err != nil {
			return nil, err
		}
		enum.Values = append(enum.Values, &EnumValue{
			Name:    valueProto.GetName(),
			Number:  valueProto.GetNumber(),
			Options: valueOptions,
		})
	}
	return enum, nil
}

func (l *Loader) convertMessage(
	messageProto *descriptorpb.DescriptorProto,
	fileProto *descriptorpb.FileDescriptorProto,
	parents []string,
) (*Message, error) {
	fullName := qualifyName(fileProto.GetPackage(), parents, messageProto.GetName())

	if len(messageProto.GetExtension()) > 0 || len(messageProto.GetExtensionRange()) > 0 {
		return nil, UnsupportedFeatureError{
			Feature: "extensions",
			File:    fileProto.GetName(),
			Symbol:  fullName,
		}
	}

	options, err := optionsToBag(messageProto.GetOptions())
	if err != nil {
		return nil, err
	}
	message := &Message{
		Name:          messageProto.GetName(),
		FullName:      fullName,
		Options:       options,
		ReservedNames: append([]string(nil), messageProto.GetReservedName()...),
	}
	l.registerType(fullName, message, fileProto.GetName())

	parentsChain := append(append([]string(nil), parents...), messageProto.GetName())

	for _, oneofProto := range messageProto.GetOneofDecl() {
		oneofOptions, err := optionsToBag(oneofProto.GetOptions())
		if err != nil {
			return nil, err
		}
		message.Oneofs = append(message.Oneofs, &Oneof{
			Name:     oneofProto.GetName(),
			FullName: fullName + "." + oneofProto.GetName(),
			Options:  oneofOptions,
		})
	}

	for _, nestedProto := range messageProto.GetNestedType() {
		nestedFullName := qualifyName(fileProto.GetPackage(), parentsChain, nestedProto.GetName())
		if nestedProto.GetOptions().GetMapEntry() {
			// map-entry схлопывается, как тип наружу не выходит
			l.mapEntries[nestedFullName] = nestedProto
			continue
		}
		nested, err := l.convertMessage(nestedProto, fileProto, parentsChain)
		if err != nil {
			return nil, err
		}
		message.NestedMessages = append(message.NestedMessages, nested)
	}

	for _, enumProto := range messageProto.GetEnumType() {
		nestedEnum, err := l.convertEnum(enumProto, fileProto, parentsChain)
		if err != nil {
			return nil, err
		}
		message.NestedEnums = append(message.NestedEnums, nestedEnum)
	}

	for _, fieldProto := range messageProto.GetField() {
		field, err := l.convertField(fieldProto, message, fileProto.GetName())
		if err != nil {
			return nil, err
		}
		message.Fields = append(message.Fields, field)
	}

	// Двусторонняя связка oneof: поле уже знает индекс группы,
	// группа получает список членов в порядке объявления.
	for _, field := range message.Fields {
		if field.OneofIndex < 0 {
			continue
		}
		group := message.Oneofs[field.OneofIndex]
		group.Fields = append(group.Fields, field)
	}
	message.Oneofs = dropSyntheticOneofs(message.Oneofs)

	return message, nil
}

// dropSyntheticOneofs убирает oneof-группы, синтезированные protoc
// для proto3 optional полей
func dropSyntheticOneofs(oneofs []*Oneof) []*Oneof {
	kept := oneofs[:0]
	for _, group := range oneofs {
		if len(group.Fields) == 1 && group.Fields[0].Proto3Optional {
			group.Fields[0].Oneof = ""
			group.Fields[0].OneofIndex = -1
			continue
		}
		kept = append(kept, group)
	}
	return kept
}

func (l *Loader) convertField(
	fieldProto *descriptorpb.FieldDescriptorProto,
	message *Message,
	fileName string,
) (*Field, error) {
	fieldPath := message.FullName + "." + fieldProto.GetName()

	if fieldProto.GetType() == descriptorpb.FieldDescriptorProto_TYPE_GROUP {
		return nil, UnsupportedFeatureError{
			Feature: "group fields",
			File:    fileName,
			Symbol:  fieldPath,
		}
	}

	var cardinality Cardinality
	switch fieldProto.GetLabel() {
	case descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL:
		cardinality = CardinalityOptional
	case descriptorpb.FieldDescriptorProto_LABEL_REQUIRED:
		cardinality = CardinalityRequired
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		cardinality = CardinalityRepeated
	default:
		return nil, MalformedDescriptorError{
			File:   fileName,
			Symbol: fieldPath,
			Reason: fmt.Sprintf("unknown label %d", fieldProto.GetLabel()),
		}
	}

	kind, scalar, typeName, err := l.classifyFieldType(fieldProto, fileName, fieldPath)
	if err != nil {
		return nil, err
	}

	var mapEntry *MapEntry
	if kind == KindMessage && cardinality == CardinalityRepeated {
		if entryProto, ok := l.mapEntries[typeName]; ok {
			mapEntry, err = l.buildMapEntry(entryProto, fileName, fieldPath)
			if err != nil {
				return nil, err
			}
			kind = KindMap
			scalar = ""
			typeName = ""
		}
	}

	options, err := optionsToBag(fieldProto.GetOptions())
	if err != nil {
		return nil, err
	}

	oneofIndex := -1
	oneofName := ""
	if fieldProto.OneofIndex != nil {
		oneofIndex = int(fieldProto.GetOneofIndex())
		if oneofIndex < 0 || oneofIndex >= len(message.Oneofs) {
			return nil, MalformedDescriptorError{
				File:   fileName,
				Symbol: fieldPath,
				Reason: fmt.Sprintf("oneof index %d out of range (message declares %d groups)", oneofIndex, len(message.Oneofs)),
			}
		}
		oneofName = message.Oneofs[oneofIndex].Name
	}

	field := &Field{
		Name:           fieldProto.GetName(),
		Number:         fieldProto.GetNumber(),
		Cardinality:    cardinality,
		Kind:           kind,
		Scalar:         scalar,
		TypeName:       typeName,
		Map:            mapEntry,
		DefaultValue:   fieldProto.GetDefaultValue(),
		JSONName:       fieldProto.GetJsonName(),
		Oneof:          oneofName,
		OneofIndex:     oneofIndex,
		Proto3Optional: fieldProto.GetProto3Optional(),
		Options:        options,
	}
	if fieldProto.GetOptions() != nil && fieldProto.GetOptions().Packed != nil {
		packed := fieldProto.GetOptions().GetPacked()
		field.Packed = &packed
	}

	if field.Kind == KindMessage || field.Kind == KindEnum {
		l.pending = append(l.pending, pendingRef{file: fileName, field: fieldPath, typeName: field.TypeName})
	}
	if field.Map != nil {
		if field.Map.KeyKind == KindMessage || field.Map.KeyKind == KindEnum {
			l.pending = append(l.pending, pendingRef{file: fileName, field: fieldPath, typeName: field.Map.KeyTypeName})
		}
		if field.Map.ValueKind == KindMessage || field.Map.ValueKind == KindEnum {
			l.pending = append(l.pending, pendingRef{file: fileName, field: fieldPath, typeName: field.Map.ValueTypeName})
		}
	}
	return field, nil
}

func (l *Loader) buildMapEntry(
	entryProto *descriptorpb.DescriptorProto,
	fileName, fieldPath string,
) (*MapEntry, error) {
	if len(entryProto.GetField()) != 2 {
		return nil, MalformedDescriptorError{
			File:   fileName,
			Symbol: fieldPath,
			Reason: fmt.Sprintf("map entry declares %d fields, want 2", len(entryProto.GetField())),
		}
	}
	keyKind, keyScalar, keyTypeName, err := l.classifyFieldType(entryProto.GetField()[0], fileName, fieldPath)
	if err != nil {
		return nil, err
	}
	valueKind, valueScalar, valueTypeName, err := l.classifyFieldType(entryProto.GetField()[1], fileName, fieldPath)
	if err != nil {
		return nil, err
	}
	return &MapEntry{
		KeyKind:       keyKind,
		KeyScalar:     keyScalar,
		KeyTypeName:   keyTypeName,
		ValueKind:     valueKind,
		ValueScalar:   valueScalar,
		ValueTypeName: valueTypeName,
	}, nil
}

func (l *Loader) classifyFieldType(
	fieldProto *descriptorpb.FieldDescriptorProto,
	fileName, fieldPath string,
) (FieldKind, string, string, error) {
	fieldType := fieldProto.GetType()
	if scalar, ok := scalarTypeNames[fieldType]; ok {
		return KindScalar, scalar, "", nil
	}
	switch fieldType {
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		return KindEnum, "", normalizeTypeName(fieldProto.GetTypeName()), nil
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		return KindMessage, "", normalizeTypeName(fieldProto.GetTypeName()), nil
	case descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		return 0, "", "", UnsupportedFeatureError{
			Feature: "group fields",
			File:    fileName,
			Symbol:  fieldPath,
		}
	}
	return 0, "", "", MalformedDescriptorError{
		File:   fileName,
		Symbol: fieldPath,
		Reason: fmt.Sprintf("unsupported field type %d", fieldType),
	}
}

func (l *Loader) registerType(fullName string, t Type, fileName string) {
	l.typeIndex[fullName] = t
	l.typeFile[fullName] = fileName
}

// resolveReferences проверяет все отложенные ссылки на типы:
// тип должен существовать и быть объявлен в самом файле или его зависимостях
func (l *Loader) resolveReferences() error {
	for _, ref := range l.pending {
		_, ok := l.typeIndex[ref.typeName]
		if !ok {
			return DanglingReferenceError{
				File:     ref.file,
				Field:    ref.field,
				TypeName: ref.typeName,
			}
		}
		declaredIn := l.typeFile[ref.typeName]
		if !l.fileVisible(ref.file, declaredIn) {
			return DanglingReferenceError{
				File:     ref.file,
				Field:    ref.field,
				TypeName: ref.typeName,
			}
		}
	}
	return nil
}

// fileVisible проверяет, что target входит в множество видимых файлов from:
// сам файл, его прямые зависимости и транзитивное замыкание public-зависимостей
func (l *Loader) fileVisible(from, target string) bool {
	if from == target {
		return true
	}
	seen := map[string]bool{from: true}
	queue := append([]string(nil), l.files[from].Dependencies...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		if name == target {
			return true
		}
		if dep, ok := l.files[name]; ok {
			queue = append(queue, dep.PublicDependencies...)
		}
	}
	return false
}

func qualifyName(pkg string, parents []string, name string) string {
	segments := make([]string, 0, len(parents)+2)
	if pkg != "" {
		segments = append(segments, pkg)
	}
	segments = append(segments, parents...)
	segments = append(segments, name)
	return strings.Join(segments, ".")
}

func normalizeTypeName(typeName string) string {
	return strings.TrimPrefix(typeName, ".")
}

// optionsToBag переводит options-сообщение дескриптора в динамический bag.
// Имена полей сохраняются в proto-виде, незаполненные поля опускаются.
func optionsToBag(options proto.Message) (OptionBag, error) {
	if options == nil || !options.ProtoReflect().IsValid() {
		return OptionBag{}, nil
	}
	raw, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	decoder := jx.DecodeBytes(raw)
	value, err := decodeJxValue(decoder)
	if err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	bag, ok := value.(map[string]any)
	if !ok {
		return OptionBag{}, nil
	}
	return OptionBag(bag), nil
}

func decodeJxValue(d *jx.Decoder) (any, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		num, err := d.Num()
		if err != nil {
			return nil, err
		}
		return num.Float64()
	case jx.Bool:
		return d.Bool()
	case jx.Null:
		return nil, d.Null()
	case jx.Array:
		var items []any
		err := d.Arr(func(d *jx.Decoder) error {
			item, err := decodeJxValue(d)
			if err != nil {
				return err
			}
			items = append(items, item)
			return nil
		})
		return items, err
	case jx.Object:
		obj := make(map[string]any)
		err := d.Obj(func(d *jx.Decoder, key string) error {
			item, err := decodeJxValue(d)
			if err != nil {
				return err
			}
			obj[key] = item
			return nil
		})
		return obj, err
	default:
		return nil, fmt.Errorf("unexpected json token %v", d.Next())
	}
}
