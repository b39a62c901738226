package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaroher/protoc-gen-ue-plain/ir"
	"github.com/yaroher/protoc-gen-ue-plain/mapper"
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

func mapDemoFile(t *testing.T, config mapper.Config, file *ir.File, deps ...*ir.File) *mapper.File {
	t.Helper()
	m := mapper.NewTypeMapper(config)
	require.NoError(t, m.RegisterFiles(append(deps, file)))
	mapped, err := m.MapFile(file)
	require.NoError(t, err)
	return mapped
}

func personFile() *ir.File {
	color := &ir.Enum{
		Name:     "Color",
		FullName: "demo.Color",
		Values: []*ir.EnumValue{
			{Name: "RED", Number: 0},
			{Name: "GREEN", Number: 1},
		},
	}
	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields: []*ir.Field{
			scalarIRField("id", 1, "int32"),
			scalarIRField("name", 2, "string"),
			scalarIRField("nick", 3, "string"),
		},
	}
	return &ir.File{
		Name:     "demo.proto",
		Package:  "demo",
		Enums:    []*ir.Enum{color},
		Messages: []*ir.Message{person},
	}
}

func TestRenderer_DeterministicOutput(t *testing.T) {
	file := mapDemoFile(t, mapper.Config{}, personFile())
	r := NewRenderer()

	first := r.RenderOutput(file, "demo.ueplain.h", "demo.ueplain.cpp")
	second := r.RenderOutput(file, "demo.ueplain.h", "demo.ueplain.cpp")

	assert.Equal(t, first.Header, second.Header)
	assert.Equal(t, first.Source, second.Source)
}

func TestRenderer_ArtifactOrder(t *testing.T) {
	file := mapDemoFile(t, mapper.Config{}, personFile())
	artifacts := NewRenderer().RenderFile(file)

	names := make([]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		names = append(names, artifact.Name)
	}
	// обёртки в порядке первого использования, затем enum, затем struct
	assert.Equal(t, []string{
		"FProtoOptionalDemoInt32",
		"FProtoOptionalDemoFString",
		"EColor",
		"FPerson",
	}, names)
}

func TestRenderer_WrapperDeclaredOnce(t *testing.T) {
	file := mapDemoFile(t, mapper.Config{}, personFile())
	out := NewRenderer().RenderOutput(file, "demo.ueplain.h", "demo.ueplain.cpp")

	// два string-поля делят одну обёртку
	assert.Equal(t, 1, strings.Count(out.Header, "struct FProtoOptionalDemoFString {"))
}

func TestRenderer_HeaderLayout(t *testing.T) {
	file := mapDemoFile(t, mapper.Config{}, personFile())
	out := NewRenderer().RenderOutput(file, "demo.ueplain.h", "demo.ueplain.cpp")

	assert.True(t, strings.HasPrefix(out.Header, "#pragma once\n"))
	assert.Contains(t, out.Header, "#include \"CoreMinimal.h\"")
	assert.Contains(t, out.Header, "#include \"demo.ueplain.generated.h\"")
	assert.Contains(t, out.Header, "namespace demo {")
	assert.Contains(t, out.Header, "}  // namespace demo")
	assert.Contains(t, out.Header, "enum class EColor : uint8 {")
	assert.Contains(t, out.Header, "\tRED = 0,")
	assert.Contains(t, out.Header, "struct FPerson {")
	assert.Contains(t, out.Header, "\tGENERATED_BODY()")
}

func TestRenderer_FoldedPackageSkipsNamespaces(t *testing.T) {
	file := mapDemoFile(t, mapper.Config{IncludePackageInNames: true}, personFile())
	out := NewRenderer().RenderOutput(file, "demo.ueplain.h", "demo.ueplain.cpp")

	assert.NotContains(t, out.Header, "namespace demo")
	assert.Contains(t, out.Header, "struct FDemoPerson {")
}

func TestRenderer_SourceLayout(t *testing.T) {
	file := mapDemoFile(t, mapper.Config{}, personFile())
	out := NewRenderer().RenderOutput(file, "demo.ueplain.h", "demo.ueplain.cpp")

	assert.Contains(t, out.Source, "#include \"demo.ueplain.h\"")
	assert.Contains(t, out.Source, "void RegisterGeneratedTypes_demo() {")
}

func TestRenderer_PropertyFlags(t *testing.T) {
	secret := scalarIRField("secret", 1, "string")
	secret.Options = ir.OptionBag{
		"unreal": map[string]any{
			"blueprint_read_only": true,
			"category":            "Identity",
			"meta":                map[string]any{"DisplayName": "Secret"},
		},
	}
	open := scalarIRField("open", 2, "int32")

	file := &ir.File{
		Name:    "demo.proto",
		Package: "demo",
		Messages: []*ir.Message{{
			Name:     "Person",
			FullName: "demo.Person",
			Fields:   []*ir.Field{secret, open},
		}},
	}
	out := NewRenderer().RenderOutput(mapDemoFile(t, mapper.Config{}, file), "demo.ueplain.h", "demo.ueplain.cpp")

	assert.Contains(t, out.Header, `UPROPERTY(EditAnywhere, BlueprintReadOnly, Category="Identity", meta=(DisplayName="Secret"))`)
	assert.Contains(t, out.Header, "UPROPERTY(EditAnywhere, BlueprintReadWrite)")
}

func TestRenderer_DependencyIncludes(t *testing.T) {
	meta := &ir.Message{Name: "Meta", FullName: "base.Meta"}
	baseFile := &ir.File{Name: "base/meta.proto", Package: "base", Messages: []*ir.Message{meta}}

	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields: []*ir.Field{{
			Name:        "meta",
			Number:      1,
			Cardinality: ir.CardinalityOptional,
			Kind:        ir.KindMessage,
			TypeName:    "base.Meta",
			OneofIndex:  -1,
		}},
	}
	userFile := &ir.File{Name: "user.proto", Package: "demo", Messages: []*ir.Message{person}}

	out := NewRenderer().RenderOutput(
		mapDemoFile(t, mapper.Config{}, userFile, baseFile),
		"user.ueplain.h", "user.ueplain.cpp",
	)
	assert.Contains(t, out.Header, "#include \"base/meta.ueplain.h\"")
}

func TestRenderer_OneofWrapperDeclaration(t *testing.T) {
	email := scalarIRField("email", 1, "string")
	email.Oneof = "contact"
	email.OneofIndex = 0
	phone := scalarIRField("phone", 2, "string")
	phone.Oneof = "contact"
	phone.OneofIndex = 0

	person := &ir.Message{
		Name:     "Person",
		FullName: "demo.Person",
		Fields:   []*ir.Field{email, phone},
		Oneofs: []*ir.Oneof{{
			Name:     "contact",
			FullName: "demo.Person.contact",
			Fields:   []*ir.Field{email, phone},
		}},
	}
	file := &ir.File{Name: "demo.proto", Package: "demo", Messages: []*ir.Message{person}}
	out := NewRenderer().RenderOutput(mapDemoFile(t, mapper.Config{}, file), "demo.ueplain.h", "demo.ueplain.cpp")

	idx := strings.Index(out.Header, "struct FPersonContactOneof {")
	require.GreaterOrEqual(t, idx, 0)
	// обёртка группы объявлена раньше владеющей структуры
	assert.Less(t, idx, strings.Index(out.Header, "struct FPerson {"))
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"demo.proto", "demo"},
		{"game/demo.proto", "game/demo"},
		{"weird-name.proto", "weird_name"},
		{"a.b.proto", "a_b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFileName(tt.in))
		})
	}
}
