package render

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/yaroher/protoc-gen-ue-plain/mapper"
)

// Artifact — именованная пара текстов объявления/определения одного типа
type Artifact struct {
	Name        string
	Declaration string
	Definition  string
}

// FileOutput — собранные header/source одного proto-файла
type FileOutput struct {
	HeaderName string
	SourceName string
	Header     string
	Source     string
}

// Renderer собирает текстовые артефакты из UE-графа типов.
// Семантической валидации здесь нет: несогласованный граф — ошибка
// контракта маппера, а не рендера.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderFile возвращает артефакты файла в фиксированном порядке:
// optional-обёртки в порядке первого использования, затем enum/struct
// в порядке объявления. Повторный вызов на том же графе даёт байт в байт
// тот же результат.
func (r *Renderer) RenderFile(file *mapper.File) []Artifact {
	var artifacts []Artifact
	for _, wrapper := range file.OptionalWrappers {
		artifacts = append(artifacts, Artifact{
			Name:        wrapper.UEName,
			Declaration: renderOptionalWrapper(wrapper),
		})
	}
	for _, enum := range file.Enums {
		artifacts = append(artifacts, renderEnumArtifact(enum))
	}
	for _, message := range file.Messages {
		artifacts = append(artifacts, renderMessageArtifacts(message)...)
	}
	return artifacts
}

// RenderOutput собирает header/source файла из его артефактов
func (r *Renderer) RenderOutput(file *mapper.File, headerName, sourceName string) FileOutput {
	artifacts := r.RenderFile(file)

	var header strings.Builder
	header.WriteString("#pragma once\n\n")
	fmt.Fprintf(&header, "// Generated by protoc-gen-ue-plain. Source: %s\n\n", file.Name)
	header.WriteString("#include \"CoreMinimal.h\"\n")
	for _, dep := range dependencyIncludes(file) {
		fmt.Fprintf(&header, "#include %q\n", dep)
	}
	base := path.Base(headerName)
	fmt.Fprintf(&header, "#include %q\n\n", strings.TrimSuffix(base, ".h")+".generated.h")

	namespaces := namespaceSegments(file)
	for _, segment := range namespaces {
		fmt.Fprintf(&header, "namespace %s {\n", segment)
	}
	if len(namespaces) > 0 {
		header.WriteString("\n")
	}
	for _, artifact := range artifacts {
		header.WriteString(artifact.Declaration)
		header.WriteString("\n")
	}
	for i := len(namespaces) - 1; i >= 0; i-- {
		fmt.Fprintf(&header, "}  // namespace %s\n", namespaces[i])
	}

	var source strings.Builder
	fmt.Fprintf(&source, "// Generated by protoc-gen-ue-plain. Source: %s\n", file.Name)
	fmt.Fprintf(&source, "#include %q\n\n", path.Base(headerName))
	for _, artifact := range artifacts {
		if artifact.Definition != "" {
			source.WriteString(artifact.Definition)
			source.WriteString("\n")
		}
	}
	fmt.Fprintf(&source, "void RegisterGeneratedTypes_%s() {\n", sanitizePathIdentifier(file.Name))
	source.WriteString("\t// reflection is handled by UHT, the hook is kept for module startup wiring\n")
	source.WriteString("}\n")

	return FileOutput{
		HeaderName: headerName,
		SourceName: sourceName,
		Header:     header.String(),
		Source:     source.String(),
	}
}

func renderOptionalWrapper(wrapper *mapper.OptionalWrapper) string {
	var b strings.Builder
	if wrapper.BlueprintType {
		b.WriteString("USTRUCT(BlueprintType)\n")
	} else {
		b.WriteString("USTRUCT()\n")
	}
	fmt.Fprintf(&b, "struct %s {\n", wrapper.UEName)
	b.WriteString("\tGENERATED_BODY()\n\n")
	b.WriteString(propertyLine(wrapper.ValueBlueprintExposed, false, "", nil, nil))
	fmt.Fprintf(&b, "\tbool %s = false;\n\n", wrapper.IsSetMember)
	b.WriteString(propertyLine(wrapper.ValueBlueprintExposed, false, "", nil, nil))
	fmt.Fprintf(&b, "\t%s %s{};\n", wrapper.BaseType, wrapper.ValueMember)
	b.WriteString("};\n")
	return b.String()
}

func renderEnumArtifact(enum *mapper.Enum) Artifact {
	var b strings.Builder
	specifiers := enumSpecifiers(enum)
	fmt.Fprintf(&b, "UENUM(%s)\n", strings.Join(specifiers, ", "))
	fmt.Fprintf(&b, "enum class %s : uint8 {\n", enum.UEName)
	for _, value := range enum.Values {
		fmt.Fprintf(&b, "\t%s = %d,\n", value.Name, value.Number)
	}
	b.WriteString("};\n")
	return Artifact{Name: enum.UEName, Declaration: b.String()}
}

func renderMessageArtifacts(message *mapper.Message) []Artifact {
	var artifacts []Artifact
	for _, nested := range message.NestedEnums {
		artifacts = append(artifacts, renderEnumArtifact(nested))
	}
	for _, nested := range message.NestedMessages {
		artifacts = append(artifacts, renderMessageArtifacts(nested)...)
	}
	for _, oneof := range message.Oneofs {
		artifacts = append(artifacts, Artifact{
			Name:        oneof.UEName,
			Declaration: renderOneofWrapper(oneof),
		})
	}
	artifacts = append(artifacts, Artifact{
		Name:        message.UEName,
		Declaration: renderStruct(message),
	})
	return artifacts
}

func renderStruct(message *mapper.Message) string {
	var b strings.Builder
	b.WriteString(structHeader(message.BlueprintType, message.Specifiers))
	fmt.Fprintf(&b, "struct %s {\n", message.UEName)
	b.WriteString("\tGENERATED_BODY()\n")
	for _, field := range message.Fields {
		b.WriteString("\n")
		b.WriteString(propertyLine(field.BlueprintExposed, field.BlueprintReadOnly, field.Category, field.Specifiers, field.Metadata))
		fmt.Fprintf(&b, "\t%s %s{};\n", field.UEType, field.Name)
	}
	b.WriteString("};\n")
	return b.String()
}

func renderOneofWrapper(oneof *mapper.OneofWrapper) string {
	var b strings.Builder
	b.WriteString("USTRUCT(BlueprintType)\n")
	fmt.Fprintf(&b, "struct %s {\n", oneof.UEName)
	b.WriteString("\tGENERATED_BODY()\n")
	for _, oneofCase := range oneof.Cases {
		b.WriteString("\n")
		b.WriteString(propertyLine(true, false, "", nil, nil))
		fmt.Fprintf(&b, "\t%s %s{};\n", oneofCase.Field.UEType, oneofCase.Name)
	}
	b.WriteString("};\n")
	return b.String()
}

func structHeader(blueprintType bool, specifiers []string) string {
	args := []string{}
	if blueprintType {
		args = append(args, "BlueprintType")
	}
	args = append(args, specifiers...)
	return fmt.Sprintf("USTRUCT(%s)\n", strings.Join(args, ", "))
}

func enumSpecifiers(enum *mapper.Enum) []string {
	args := []string{}
	if enum.BlueprintType {
		args = append(args, "BlueprintType")
	}
	args = append(args, enum.Specifiers...)
	return args
}

func propertyLine(exposed, readOnly bool, category string, specifiers []string, metadata map[string]string) string {
	args := []string{"EditAnywhere"}
	if exposed {
		if readOnly {
			args = append(args, "BlueprintReadOnly")
		} else {
			args = append(args, "BlueprintReadWrite")
		}
	}
	args = append(args, specifiers...)
	if category != "" {
		args = append(args, fmt.Sprintf("Category=%q", category))
	}
	if len(metadata) > 0 {
		keys := lo.Keys(metadata)
		sort.Strings(keys)
		pairs := lo.Map(keys, func(key string, _ int) string {
			return fmt.Sprintf("%s=%q", key, metadata[key])
		})
		args = append(args, fmt.Sprintf("meta=(%s)", strings.Join(pairs, ", ")))
	}
	return fmt.Sprintf("\tUPROPERTY(%s)\n", strings.Join(args, ", "))
}

func dependencyIncludes(file *mapper.File) []string {
	var deps []string
	var walk func(messages []*mapper.Message)
	walk = func(messages []*mapper.Message) {
		for _, message := range messages {
			for _, field := range message.Fields {
				deps = append(deps, field.DependentFiles...)
			}
			walk(message.NestedMessages)
		}
	}
	walk(file.Messages)
	deps = lo.Uniq(deps)
	sort.Strings(deps)
	return lo.Map(deps, func(dep string, _ int) string {
		return SanitizeFileName(dep) + ".ueplain.h"
	})
}

func namespaceSegments(file *mapper.File) []string {
	if file.FoldPackage || file.Package == "" {
		return nil
	}
	return strings.Split(file.Package, ".")
}

var fileNameSanitizer = regexp.MustCompile(`[^0-9A-Za-z_]`)

// SanitizeFileName приводит базовое имя proto-файла к идентификатору,
// каталоги сохраняются как есть
func SanitizeFileName(protoName string) string {
	dir, base := path.Split(protoName)
	base = strings.TrimSuffix(base, ".proto")
	base = fileNameSanitizer.ReplaceAllString(base, "_")
	if base == "" {
		base = "file"
	}
	return dir + base
}

func sanitizePathIdentifier(protoName string) string {
	name := strings.TrimSuffix(protoName, ".proto")
	return fileNameSanitizer.ReplaceAllString(name, "_")
}
