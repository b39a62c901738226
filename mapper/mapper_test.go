package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaroher/protoc-gen-ue-plain/ir"
)

func scalarIRField(name string, number int32, scalar string) *ir.Field {
	return &ir.Field{
		Name:        name,
		Number:      number,
		Cardinality: ir.CardinalityOptional,
		Kind:        ir.KindScalar,
		Scalar:      scalar,
		OneofIndex:  -1,
	}
}

func messageIRField(name string, number int32, typeName string) *ir.Field {
	return &ir.Field{
		Name:        name,
		Number:      number,
		Cardinality: ir.CardinalityOptional,
		Kind:        ir.KindMessage,
		TypeName:    typeName,
		OneofIndex:  -1,
	}
}

func irFile(name, pkg string, messages ...*ir.Message) *ir.File {
	return &ir.File{
		Name:     name,
		Package:  pkg,
		Messages: messages,
	}
}

func mustMap(t *testing.T, m *TypeMapper, file *ir.File) *File {
	t.Helper()
	mapped, err := m.MapFile(file)
	require.NoError(t, err)
	return mapped
}

func TestTypeMapper_ScalarFields(t *testing.T) {
	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields: []*ir.Field{
			scalarIRField("id", 1, "int32"),
			scalarIRField("name", 2, "string"),
			scalarIRField("stamp", 3, "fixed64"),
			scalarIRField("blob", 4, "bytes"),
		},
	}
	mapped := mustMap(t, NewTypeMapper(Config{}), irFile("demo.proto", "demo", person))

	require.Len(t, mapped.Messages, 1)
	fields := mapped.Messages[0].Fields
	assert.Equal(t, "FPerson", mapped.Messages[0].UEName)

	assert.Equal(t, "int32", fields[0].BaseType)
	assert.Equal(t, "FString", fields[1].BaseType)
	// fixed64 делит представление с uint64
	assert.Equal(t, "uint64", fields[2].BaseType)
	assert.Equal(t, "TArray<uint8>", fields[3].BaseType)

	// singular-поле в proto3 всегда за optional-обёрткой
	for _, field := range fields {
		assert.True(t, field.IsOptional, field.Name)
		assert.NotEmpty(t, field.OptionalWrapper, field.Name)
		assert.Equal(t, field.OptionalWrapper.UEName, field.UEType, field.Name)
	}
	assert.Equal(t, "FProtoOptionalDemoInt32", fields[0].UEType)
	assert.Equal(t, "FProtoOptionalDemoFString", fields[1].UEType)
}

func TestTypeMapper_UnsignedBlueprintOverride(t *testing.T) {
	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields: []*ir.Field{
			scalarIRField("a", 1, "uint32"),
			scalarIRField("b", 2, "uint64"),
			scalarIRField("c", 3, "fixed32"),
		},
	}
	m := NewTypeMapper(Config{ConvertUnsignedForBlueprint: true})
	mapped := mustMap(t, m, irFile("demo.proto", "demo", person))

	fields := mapped.Messages[0].Fields
	assert.Equal(t, "int32", fields[0].BaseType)
	assert.Equal(t, "int64", fields[1].BaseType)
	assert.Equal(t, "int32", fields[2].BaseType)
}

func TestTypeMapper_RepeatedAndRequired(t *testing.T) {
	scores := scalarIRField("scores", 1, "int32")
	scores.Cardinality = ir.CardinalityRepeated
	legacy := scalarIRField("legacy", 2, "string")
	legacy.Cardinality = ir.CardinalityRequired

	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields:   []*ir.Field{scores, legacy},
	}
	mapped := mustMap(t, NewTypeMapper(Config{}), irFile("demo.proto", "demo", person))

	fields := mapped.Messages[0].Fields
	assert.True(t, fields[0].IsRepeated)
	assert.Equal(t, "TArray<int32>", fields[0].UEType)
	assert.Nil(t, fields[0].OptionalWrapper)

	// proto2 required остаётся голым значением
	assert.False(t, fields[1].IsOptional)
	assert.Equal(t, "FString", fields[1].UEType)
}

func TestTypeMapper_WrapperDeduplication(t *testing.T) {
	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields: []*ir.Field{
			scalarIRField("first_name", 1, "string"),
			scalarIRField("last_name", 2, "string"),
			scalarIRField("age", 3, "int32"),
			scalarIRField("nick", 4, "string"),
		},
	}
	mapped := mustMap(t, NewTypeMapper(Config{}), irFile("demo.proto", "demo", person))

	// по одной обёртке на базовый тип, в порядке первого использования
	require.Len(t, mapped.OptionalWrappers, 2)
	assert.Equal(t, "FString", mapped.OptionalWrappers[0].BaseType)
	assert.Equal(t, "int32", mapped.OptionalWrappers[1].BaseType)
	assert.Same(t, mapped.Messages[0].Fields[0].OptionalWrapper, mapped.Messages[0].Fields[1].OptionalWrapper)
}

func TestTypeMapper_MapFields(t *testing.T) {
	labels := &ir.Field{
		Name:        "labels",
		Number:      1,
		Cardinality: ir.CardinalityRepeated,
		Kind:        ir.KindMap,
		OneofIndex:  -1,
		Map: &ir.MapEntry{
			KeyKind:   ir.KindScalar,
			KeyScalar: "string",
			ValueKind: ir.KindScalar, ValueScalar: "int32",
		},
	}
	attrs := &ir.Field{
		Name:        "attrs",
		Number:      2,
		Cardinality: ir.CardinalityRepeated,
		Kind:        ir.KindMap,
		OneofIndex:  -1,
		Map: &ir.MapEntry{
			KeyKind:   ir.KindScalar,
			KeyScalar: "int64",
			ValueKind: ir.KindMessage, ValueTypeName: "demo.Attr",
		},
	}
	attr := &ir.Message{Name: "Attr", FullName: "demo.Attr"}
	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields:   []*ir.Field{labels, attrs},
	}
	mapped := mustMap(t, NewTypeMapper(Config{}), irFile("demo.proto", "demo", attr, person))

	fields := mapped.Messages[1].Fields
	assert.True(t, fields[0].IsMap)
	assert.Equal(t, "TMap<FString, int32>", fields[0].UEType)
	assert.Equal(t, "FString", fields[0].MapKeyType)
	assert.Equal(t, "TMap<int64, FAttr>", fields[1].UEType)

	// map-поле не получает optional-обёртку
	assert.Empty(t, mapped.OptionalWrappers)
}

func TestTypeMapper_MapKeyRestrictions(t *testing.T) {
	tests := []struct {
		name  string
		entry *ir.MapEntry
	}{
		{"float key", &ir.MapEntry{KeyKind: ir.KindScalar, KeyScalar: "float", ValueKind: ir.KindScalar, ValueScalar: "int32"}},
		{"double key", &ir.MapEntry{KeyKind: ir.KindScalar, KeyScalar: "double", ValueKind: ir.KindScalar, ValueScalar: "int32"}},
		{"bytes key", &ir.MapEntry{KeyKind: ir.KindScalar, KeyScalar: "bytes", ValueKind: ir.KindScalar, ValueScalar: "int32"}},
		{"message key", &ir.MapEntry{KeyKind: ir.KindMessage, KeyTypeName: "demo.Attr", ValueKind: ir.KindScalar, ValueScalar: "int32"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := &ir.Field{
				Name:        "bad",
				Number:      1,
				Cardinality: ir.CardinalityRepeated,
				Kind:        ir.KindMap,
				OneofIndex:  -1,
				Map:         tt.entry,
			}
			person := &ir.Message{
				Name:     "Person",
				FullName: "demo.Person",
				Fields:   []*ir.Field{bad},
			}
			_, err := NewTypeMapper(Config{}).MapFile(irFile("demo.proto", "demo", person))
			var mappingErr MappingError
			require.ErrorAs(t, err, &mappingErr)
			assert.Equal(t, "demo.Person.bad", mappingErr.FieldPath)
		})
	}
}

func TestTypeMapper_OneofDualRepresentation(t *testing.T) {
	email := scalarIRField("email", 1, "string")
	email.Oneof = "contact"
	email.OneofIndex = 0
	home := messageIRField("home", 2, "demo.Address")
	home.Oneof = "contact"
	home.OneofIndex = 0

	contact := &ir.Oneof{
		Name:     "contact",
		FullName: "demo.Person.contact",
		Fields:   []*ir.Field{email, home},
	}
	address := &ir.Message{Name: "Address", FullName: "demo.Address"}
	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields:   []*ir.Field{email, home},
		Oneofs:   []*ir.Oneof{contact},
	}
	mapped := mustMap(t, NewTypeMapper(Config{}), irFile("demo.proto", "demo", address, person))

	mappedPerson := mapped.Messages[1]
	// плоские поля сохранены и обёрнуты как optional
	require.Len(t, mappedPerson.Fields, 2)
	assert.True(t, mappedPerson.Fields[0].IsOptional)
	assert.True(t, mappedPerson.Fields[1].IsOptional)
	assert.Equal(t, "contact", mappedPerson.Fields[0].OneofGroup)

	// параллельно синтезирована обёртка группы
	require.Len(t, mappedPerson.Oneofs, 1)
	group := mappedPerson.Oneofs[0]
	assert.Equal(t, "FPersonContactOneof", group.UEName)
	require.Len(t, group.Cases, 2)
	assert.Equal(t, "FPersonContactOneofEmailCase", group.Cases[0].UECaseName)
	assert.Same(t, mappedPerson.Fields[1], group.Cases[1].Field)
}

func TestTypeMapper_IncludePackageInNames(t *testing.T) {
	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.game.Person",
		NestedEnums: []*ir.Enum{
			{Name: "Rank", FullName: "demo.game.Person.Rank"},
		},
	}
	m := NewTypeMapper(Config{IncludePackageInNames: true})
	mapped := mustMap(t, m, irFile("demo.proto", "demo.game", person))

	assert.True(t, mapped.FoldPackage)
	assert.Equal(t, "FDemoGamePerson", mapped.Messages[0].UEName)
	assert.Equal(t, "EDemoGamePersonRank", mapped.Messages[0].NestedEnums[0].UEName)
}

func TestTypeMapper_NestedTypeNames(t *testing.T) {
	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		NestedMessages: []*ir.Message{
			{Name: "Address", FullName: "demo.Person.Address"},
		},
	}
	mapped := mustMap(t, NewTypeMapper(Config{}), irFile("demo.proto", "demo", person))

	assert.Equal(t, "FPersonAddress", mapped.Messages[0].NestedMessages[0].UEName)
}

func TestTypeMapper_ReservedIdentifierCollision(t *testing.T) {
	vector := &ir.Message{Name: "Vector", FullName: "demo.Vector"}
	mapped := mustMap(t, NewTypeMapper(Config{}), irFile("demo.proto", "demo", vector))

	assert.Equal(t, "FProtoVector", mapped.Messages[0].UEName)
}

func TestTypeMapper_RenameOverrides(t *testing.T) {
	person := &ir.Message{Name: "Person", FullName: "demo.Person"}
	m := NewTypeMapper(Config{
		RenameOverrides: map[string]string{"demo.Person": "FHero"},
	})
	mapped := mustMap(t, m, irFile("demo.proto", "demo", person))

	assert.Equal(t, "FHero", mapped.Messages[0].UEName)
}

func TestTypeMapper_CrossFileDependencies(t *testing.T) {
	meta := &ir.Message{Name: "Meta", FullName: "base.Meta"}
	baseFile := irFile("base.proto", "base", meta)

	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields:   []*ir.Field{messageIRField("meta", 1, "base.Meta")},
	}
	userFile := irFile("user.proto", "demo", person)

	m := NewTypeMapper(Config{})
	require.NoError(t, m.RegisterFiles([]*ir.File{baseFile, userFile}))
	mapped := mustMap(t, m, userFile)

	field := mapped.Messages[0].Fields[0]
	assert.Equal(t, "FMeta", field.BaseType)
	assert.Equal(t, []string{"base.proto"}, field.DependentFiles)
}

func TestTypeMapper_UnknownSymbol(t *testing.T) {
	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields:   []*ir.Field{messageIRField("ghost", 1, "demo.Missing")},
	}
	_, err := NewTypeMapper(Config{}).MapFile(irFile("demo.proto", "demo", person))
	var mappingErr MappingError
	require.ErrorAs(t, err, &mappingErr)
	assert.Equal(t, "demo.Person.ghost", mappingErr.FieldPath)
}

func TestTypeMapper_UnrealOptions(t *testing.T) {
	hidden := &ir.Message{
		Name:     "Hidden",
		FullName: "demo.Hidden",
		Options: ir.OptionBag{
			"unreal": map[string]any{
				"blueprint_type": false,
				"category":       "Internal",
			},
		},
	}
	secret := scalarIRField("secret", 1, "string")
	secret.Options = ir.OptionBag{
		"unreal": map[string]any{
			"blueprint_exposed":   false,
			"blueprint_read_only": true,
		},
	}
	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields:   []*ir.Field{secret},
	}
	mapped := mustMap(t, NewTypeMapper(Config{}), irFile("demo.proto", "demo", hidden, person))

	assert.False(t, mapped.Messages[0].BlueprintType)
	assert.Equal(t, "Internal", mapped.Messages[0].Category)

	field := mapped.Messages[1].Fields[0]
	assert.False(t, field.BlueprintExposed)
	assert.True(t, field.BlueprintReadOnly)
}

func TestTypeMapper_WrapperSuffixPerFile(t *testing.T) {
	m := NewTypeMapper(Config{})

	first := mustMap(t, m, irFile("game/demo.proto", "demo", &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields:   []*ir.Field{scalarIRField("id", 1, "int32")},
	}))
	second := mustMap(t, m, irFile("game/other.proto", "other", &ir.Message{
		Name:     "Thing",
		FullName: "other.Thing",
		Fields:   []*ir.Field{scalarIRField("id", 1, "int32")},
	}))

	// обёртки одного базового типа в разных файлах не делят имя
	assert.Equal(t, "FProtoOptionalGameDemoInt32", first.OptionalWrappers[0].UEName)
	assert.Equal(t, "FProtoOptionalGameOtherInt32", second.OptionalWrappers[0].UEName)
}
