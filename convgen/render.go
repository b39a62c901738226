package convgen

import (
	"fmt"
	"path"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/yaroher/protoc-gen-ue-plain/ir"
	"github.com/yaroher/protoc-gen-ue-plain/mapper"
	"github.com/yaroher/protoc-gen-ue-plain/render"
)

// wireCppTypes — C++ типы protobuf-рантайма для скалярных wire-типов.
// Несовпадение с UE-типом поля означает явный static_cast при конвертации.
var wireCppTypes = map[string]string{
	"double":   "double",
	"float":    "float",
	"int64":    "int64",
	"uint64":   "uint64",
	"int32":    "int32",
	"fixed64":  "uint64",
	"fixed32":  "uint32",
	"bool":     "bool",
	"sfixed32": "int32",
	"sfixed64": "int64",
	"sint32":   "int32",
	"sint64":   "int64",
	"uint32":   "uint32",
}

// Artifacts возвращает артефакты конвертеров в порядке:
// контекст ошибок, затем пары функций по сообщениям, затем byte-entry-point
func (s *ConverterSet) Artifacts() []render.Artifact {
	artifacts := []render.Artifact{{
		Name:        s.ClassName,
		Declaration: s.renderClassDeclaration(),
		Definition:  s.renderHelperDefinitions(),
	}}
	for _, pair := range s.Funcs {
		artifacts = append(artifacts, render.Artifact{
			Name:        pair.Message.UEName,
			Declaration: s.renderPairDeclaration(pair),
			Definition:  s.renderPairDefinition(pair),
		})
	}
	artifacts = append(artifacts, render.Artifact{
		Name:        s.LibraryName,
		Declaration: s.renderLibraryDeclaration(),
		Definition:  s.renderLibraryDefinition(),
	})
	return artifacts
}

// RenderOutput собирает header/source конвертеров файла
func (s *ConverterSet) RenderOutput(typesHeader, headerName, sourceName string) render.FileOutput {
	var header strings.Builder
	header.WriteString("#pragma once\n\n")
	fmt.Fprintf(&header, "// Generated by protoc-gen-ue-plain. Source: %s\n\n", s.File.Name)
	header.WriteString("#include <string>\n")
	header.WriteString("#include <type_traits>\n\n")
	header.WriteString("#include \"CoreMinimal.h\"\n")
	header.WriteString("#include \"Kismet/BlueprintFunctionLibrary.h\"\n")
	fmt.Fprintf(&header, "#include %q\n", path.Base(typesHeader))
	fmt.Fprintf(&header, "#include %q\n", protoPbHeader(s.File.Name))
	base := path.Base(headerName)
	fmt.Fprintf(&header, "#include %q\n\n", strings.TrimSuffix(base, ".h")+".generated.h")

	header.WriteString(s.renderClassDeclaration())
	header.WriteString("\n")
	header.WriteString(s.renderLibraryDeclaration())

	var source strings.Builder
	fmt.Fprintf(&source, "// Generated by protoc-gen-ue-plain. Source: %s\n\n", s.File.Name)
	fmt.Fprintf(&source, "#include %q\n\n", base)
	source.WriteString(s.renderHelperDefinitions())
	for _, pair := range s.Funcs {
		source.WriteString("\n")
		source.WriteString(s.renderPairDefinition(pair))
	}
	source.WriteString("\n")
	source.WriteString(s.renderLibraryDefinition())

	return render.FileOutput{
		HeaderName: headerName,
		SourceName: sourceName,
		Header:     header.String(),
		Source:     source.String(),
	}
}

func (s *ConverterSet) renderClassDeclaration() string {
	var b strings.Builder
	fmt.Fprintf(&b, "class %s {\n", s.ClassName)
	b.WriteString("public:\n")
	b.WriteString(s.renderContextDeclaration())
	b.WriteString("\n")
	b.WriteString(presenceHelpers)
	b.WriteString("\n")
	for _, pair := range s.Funcs {
		b.WriteString(s.renderPairDeclaration(pair))
	}
	b.WriteString("\n")
	b.WriteString("\tstatic std::string ToProtoString(const FString& Value);\n")
	b.WriteString("\tstatic FString FromProtoString(const std::string& Value);\n")
	b.WriteString("\tstatic std::string ToProtoBytes(const TArray<uint8>& Value);\n")
	b.WriteString("\tstatic TArray<uint8> FromProtoBytes(const std::string& Value);\n")
	b.WriteString("};\n")
	return b.String()
}

// Контекст накопления ошибок конвертации: ошибки собираются все,
// первая встреченная не прерывает обход
func (s *ConverterSet) renderContextDeclaration() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\tstruct %s {\n", s.Context.ErrorStruct)
	b.WriteString("\t\tFString FieldPath;\n")
	b.WriteString("\t\tFString Message;\n")
	b.WriteString("\t};\n\n")

	fmt.Fprintf(&b, "\tclass %s {\n", s.Context.ClassName)
	b.WriteString("\tpublic:\n")
	b.WriteString("\t\tvoid AddError(const FString& Field, const FString& Message) {\n")
	fmt.Fprintf(&b, "\t\t\t%s Error;\n", s.Context.ErrorStruct)
	b.WriteString("\t\t\tError.FieldPath = JoinPath(Field);\n")
	b.WriteString("\t\t\tError.Message = Message;\n")
	b.WriteString("\t\t\tErrorList.Add(Error);\n")
	b.WriteString("\t\t}\n\n")
	b.WriteString("\t\tbool HasErrors() const {\n")
	b.WriteString("\t\t\treturn ErrorList.Num() > 0;\n")
	b.WriteString("\t\t}\n\n")
	fmt.Fprintf(&b, "\t\tconst TArray<%s>& Errors() const {\n", s.Context.ErrorStruct)
	b.WriteString("\t\t\treturn ErrorList;\n")
	b.WriteString("\t\t}\n\n")
	b.WriteString("\t\tFString CombinedMessage() const {\n")
	b.WriteString("\t\t\tTArray<FString> Parts;\n")
	fmt.Fprintf(&b, "\t\t\tfor (const %s& Error : ErrorList) {\n", s.Context.ErrorStruct)
	b.WriteString("\t\t\t\tParts.Add(Error.FieldPath + TEXT(\": \") + Error.Message);\n")
	b.WriteString("\t\t\t}\n")
	b.WriteString("\t\t\treturn FString::Join(Parts, TEXT(\"; \"));\n")
	b.WriteString("\t\t}\n\n")
	b.WriteString("\t\tclass FScopedPath {\n")
	b.WriteString("\t\tpublic:\n")
	fmt.Fprintf(&b, "\t\t\tFScopedPath(%s* InContext, const FString& Segment) : Context(InContext) {\n", s.Context.ClassName)
	b.WriteString("\t\t\t\tif (Context) {\n")
	b.WriteString("\t\t\t\t\tContext->PathStack.Add(Segment);\n")
	b.WriteString("\t\t\t\t}\n")
	b.WriteString("\t\t\t}\n\n")
	b.WriteString("\t\t\t~FScopedPath() {\n")
	b.WriteString("\t\t\t\tif (Context) {\n")
	b.WriteString("\t\t\t\t\tContext->PathStack.Pop();\n")
	b.WriteString("\t\t\t\t}\n")
	b.WriteString("\t\t\t}\n\n")
	b.WriteString("\t\tprivate:\n")
	fmt.Fprintf(&b, "\t\t\t%s* Context;\n", s.Context.ClassName)
	b.WriteString("\t\t};\n\n")
	b.WriteString("\tprivate:\n")
	b.WriteString("\t\tFString JoinPath(const FString& Field) const {\n")
	b.WriteString("\t\t\tif (PathStack.Num() == 0) {\n")
	b.WriteString("\t\t\t\treturn Field;\n")
	b.WriteString("\t\t\t}\n")
	b.WriteString("\t\t\treturn FString::Join(PathStack, TEXT(\".\")) + TEXT(\".\") + Field;\n")
	b.WriteString("\t\t}\n\n")
	b.WriteString("\t\tTArray<FString> PathStack;\n")
	fmt.Fprintf(&b, "\t\tTArray<%s> ErrorList;\n", s.Context.ErrorStruct)
	b.WriteString("\t};\n")
	return b.String()
}

const presenceHelpers = `	template <typename T, typename = void>
	struct THasIsSet : std::false_type {
	};

	template <typename T>
	struct THasIsSet<T, std::void_t<decltype(std::declval<T>().bIsSet)>> : std::true_type {
	};

	template <typename T>
	static typename std::enable_if<THasIsSet<T>::value, bool>::type IsValueProvided(const T& Wrapper) {
		return Wrapper.bIsSet;
	}

	template <typename T>
	static typename std::enable_if<!THasIsSet<T>::value, bool>::type IsValueProvided(const T&) {
		return true;
	}

	template <typename T>
	static typename std::enable_if<THasIsSet<T>::value, decltype(std::declval<const T&>().Value)>::type GetFieldValue(const T& Wrapper) {
		return Wrapper.Value;
	}

	template <typename T>
	static typename std::enable_if<!THasIsSet<T>::value, const T&>::type GetFieldValue(const T& Value) {
		return Value;
	}
`

func (s *ConverterSet) renderPairDeclaration(pair FuncPair) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\tstatic void ToProto(const %s& Source, %s& Out, %s* Context);\n",
		pair.UEType, pair.ProtoType, s.Context.ClassName)
	fmt.Fprintf(&b, "\tstatic bool FromProto(const %s& Source, %s& Out, %s* Context);\n",
		pair.UEType, pair.ProtoType, s.Context.ClassName)
	return b.String()
}

func (s *ConverterSet) renderPairDefinition(pair FuncPair) string {
	var b strings.Builder
	b.WriteString(s.renderToProto(pair))
	b.WriteString("\n")
	b.WriteString(s.renderFromProto(pair))
	return b.String()
}

func (s *ConverterSet) renderHelperDefinitions() string {
	var b strings.Builder
	fmt.Fprintf(&b, "std::string %s::ToProtoString(const FString& Value) {\n", s.ClassName)
	b.WriteString("\treturn std::string(TCHAR_TO_UTF8(*Value));\n")
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "FString %s::FromProtoString(const std::string& Value) {\n", s.ClassName)
	b.WriteString("\treturn FString(UTF8_TO_TCHAR(Value.c_str()));\n")
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "std::string %s::ToProtoBytes(const TArray<uint8>& Value) {\n", s.ClassName)
	b.WriteString("\treturn std::string(reinterpret_cast<const char*>(Value.GetData()), Value.Num());\n")
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "TArray<uint8> %s::FromProtoBytes(const std::string& Value) {\n", s.ClassName)
	b.WriteString("\tTArray<uint8> Out;\n")
	b.WriteString("\tOut.Append(reinterpret_cast<const uint8*>(Value.data()), Value.size());\n")
	b.WriteString("\treturn Out;\n")
	b.WriteString("}\n")
	return b.String()
}

func (s *ConverterSet) renderToProto(pair FuncPair) string {
	var b strings.Builder
	fmt.Fprintf(&b, "void %s::ToProto(const %s& Source, %s& Out, %s* Context) {\n",
		s.ClassName, pair.UEType, pair.ProtoType, s.Context.ClassName)
	b.WriteString("\tOut.Clear();\n")
	for _, field := range pair.Message.Fields {
		if field.OneofGroup != "" {
			continue
		}
		s.writeFieldToProto(&b, field)
	}
	for _, oneof := range pair.Message.Oneofs {
		s.writeOneofToProto(&b, oneof)
	}
	b.WriteString("}\n")
	return b.String()
}

func (s *ConverterSet) writeFieldToProto(b *strings.Builder, field *mapper.Field) {
	name := strings.ToLower(field.Source.Name)
	switch {
	case field.IsMap:
		key := s.toWireExpr(mapKeySpec(field), "Kvp.Key")
		fmt.Fprintf(b, "\tfor (const auto& Kvp : Source.%s) {\n", field.Name)
		if field.Source.Map.ValueKind == ir.KindMessage {
			fmt.Fprintf(b, "\t\t%s::FScopedPath ScopedPath(Context, TEXT(%q));\n", s.Context.ClassName, field.Name)
			fmt.Fprintf(b, "\t\tToProto(Kvp.Value, (*Out.mutable_%s())[%s], Context);\n", name, key)
		} else {
			fmt.Fprintf(b, "\t\t(*Out.mutable_%s())[%s] = %s;\n", name, key, s.toWireExpr(mapValueSpec(field), "Kvp.Value"))
		}
		b.WriteString("\t}\n")
	case field.IsRepeated:
		fmt.Fprintf(b, "\tfor (const auto& Item : Source.%s) {\n", field.Name)
		if field.Kind == ir.KindMessage {
			fmt.Fprintf(b, "\t\t%s::FScopedPath ScopedPath(Context, TEXT(%q));\n", s.Context.ClassName, field.Name)
			fmt.Fprintf(b, "\t\tToProto(Item, *Out.add_%s(), Context);\n", name)
		} else {
			fmt.Fprintf(b, "\t\tOut.add_%s(%s);\n", name, s.toWireExpr(fieldSpec(field), "Item"))
		}
		b.WriteString("\t}\n")
	case field.IsOptional:
		fmt.Fprintf(b, "\tif (IsValueProvided(Source.%s)) {\n", field.Name)
		if field.Kind == ir.KindMessage {
			fmt.Fprintf(b, "\t\t%s::FScopedPath ScopedPath(Context, TEXT(%q));\n", s.Context.ClassName, field.Name)
			fmt.Fprintf(b, "\t\tToProto(GetFieldValue(Source.%s), *Out.mutable_%s(), Context);\n", field.Name, name)
		} else {
			expr := s.toWireExpr(fieldSpec(field), fmt.Sprintf("GetFieldValue(Source.%s)", field.Name))
			fmt.Fprintf(b, "\t\tOut.set_%s(%s);\n", name, expr)
		}
		b.WriteString("\t}\n")
	default:
		if field.Kind == ir.KindMessage {
			b.WriteString("\t{\n")
			fmt.Fprintf(b, "\t\t%s::FScopedPath ScopedPath(Context, TEXT(%q));\n", s.Context.ClassName, field.Name)
			fmt.Fprintf(b, "\t\tToProto(Source.%s, *Out.mutable_%s(), Context);\n", field.Name, name)
			b.WriteString("\t}\n")
		} else {
			fmt.Fprintf(b, "\tOut.set_%s(%s);\n", name, s.toWireExpr(fieldSpec(field), "Source."+field.Name))
		}
	}
}

// Каждый член oneof на UE-стороне — отдельное optional-поле; перед записью
// в wire проверяется, что предоставлен максимум один член
func (s *ConverterSet) writeOneofToProto(b *strings.Builder, oneof *mapper.OneofWrapper) {
	if len(oneof.Cases) == 0 {
		return
	}
	b.WriteString("\t{\n")
	b.WriteString("\t\tint32 ProvidedCount = 0;\n")
	for _, oneofCase := range oneof.Cases {
		fmt.Fprintf(b, "\t\tif (IsValueProvided(Source.%s)) {\n", oneofCase.Field.Name)
		b.WriteString("\t\t\t++ProvidedCount;\n")
		b.WriteString("\t\t}\n")
	}
	b.WriteString("\t\tif (ProvidedCount > 1) {\n")
	b.WriteString("\t\t\tif (Context) {\n")
	fmt.Fprintf(b, "\t\t\t\tContext->AddError(TEXT(%q), TEXT(\"more than one oneof member is provided\"));\n", oneof.Name)
	b.WriteString("\t\t\t}\n")
	b.WriteString("\t\t}")
	for _, oneofCase := range oneof.Cases {
		field := oneofCase.Field
		name := strings.ToLower(field.Source.Name)
		fmt.Fprintf(b, " else if (IsValueProvided(Source.%s)) {\n", field.Name)
		if field.Kind == ir.KindMessage {
			fmt.Fprintf(b, "\t\t\t%s::FScopedPath ScopedPath(Context, TEXT(%q));\n", s.Context.ClassName, field.Name)
			fmt.Fprintf(b, "\t\t\tToProto(GetFieldValue(Source.%s), *Out.mutable_%s(), Context);\n", field.Name, name)
		} else {
			expr := s.toWireExpr(fieldSpec(field), fmt.Sprintf("GetFieldValue(Source.%s)", field.Name))
			fmt.Fprintf(b, "\t\t\tOut.set_%s(%s);\n", name, expr)
		}
		b.WriteString("\t\t}")
	}
	b.WriteString("\n\t}\n")
}

func (s *ConverterSet) renderFromProto(pair FuncPair) string {
	var b strings.Builder
	fmt.Fprintf(&b, "bool %s::FromProto(const %s& Source, %s& Out, %s* Context) {\n",
		s.ClassName, pair.ProtoType, pair.UEType, s.Context.ClassName)
	b.WriteString("\tOut = {};\n")
	b.WriteString("\tbool bOk = true;\n")
	for _, field := range pair.Message.Fields {
		if field.OneofGroup != "" {
			continue
		}
		s.writeFieldFromProto(&b, field)
	}
	for _, oneof := range pair.Message.Oneofs {
		s.writeOneofFromProto(&b, pair, oneof)
	}
	b.WriteString("\tif (Context && Context->HasErrors()) {\n")
	b.WriteString("\t\tbOk = false;\n")
	b.WriteString("\t}\n")
	b.WriteString("\treturn bOk;\n")
	b.WriteString("}\n")
	return b.String()
}

func (s *ConverterSet) writeFieldFromProto(b *strings.Builder, field *mapper.Field) {
	name := strings.ToLower(field.Source.Name)
	switch {
	case field.IsMap:
		key := s.fromWireExpr(mapKeySpec(field), "Kvp.first")
		fmt.Fprintf(b, "\tfor (const auto& Kvp : Source.%s()) {\n", name)
		if field.Source.Map.ValueKind == ir.KindMessage {
			fmt.Fprintf(b, "\t\t%s::FScopedPath ScopedPath(Context, TEXT(%q));\n", s.Context.ClassName, field.Name)
			fmt.Fprintf(b, "\t\tbOk = FromProto(Kvp.second, Out.%s.Add(%s), Context) && bOk;\n", field.Name, key)
		} else {
			fmt.Fprintf(b, "\t\tOut.%s.Add(%s, %s);\n", field.Name, key, s.fromWireExpr(mapValueSpec(field), "Kvp.second"))
		}
		b.WriteString("\t}\n")
	case field.IsRepeated:
		fmt.Fprintf(b, "\tfor (const auto& Item : Source.%s()) {\n", name)
		if field.Kind == ir.KindMessage {
			fmt.Fprintf(b, "\t\t%s::FScopedPath ScopedPath(Context, TEXT(%q));\n", s.Context.ClassName, field.Name)
			fmt.Fprintf(b, "\t\tbOk = FromProto(Item, Out.%s.AddDefaulted_GetRef(), Context) && bOk;\n", field.Name)
		} else {
			fmt.Fprintf(b, "\t\tOut.%s.Add(%s);\n", field.Name, s.fromWireExpr(fieldSpec(field), "Item"))
		}
		b.WriteString("\t}\n")
	case field.IsOptional:
		fmt.Fprintf(b, "\tif (Source.has_%s()) {\n", name)
		if field.Kind == ir.KindMessage {
			fmt.Fprintf(b, "\t\t%s::FScopedPath ScopedPath(Context, TEXT(%q));\n", s.Context.ClassName, field.Name)
			fmt.Fprintf(b, "\t\tOut.%s.bIsSet = true;\n", field.Name)
			fmt.Fprintf(b, "\t\tbOk = FromProto(Source.%s(), Out.%s.Value, Context) && bOk;\n", name, field.Name)
		} else {
			fmt.Fprintf(b, "\t\tOut.%s.Value = %s;\n", field.Name, s.fromWireExpr(fieldSpec(field), fmt.Sprintf("Source.%s()", name)))
			fmt.Fprintf(b, "\t\tOut.%s.bIsSet = true;\n", field.Name)
		}
		b.WriteString("\t}\n")
	default:
		if field.Kind == ir.KindMessage {
			b.WriteString("\t{\n")
			fmt.Fprintf(b, "\t\t%s::FScopedPath ScopedPath(Context, TEXT(%q));\n", s.Context.ClassName, field.Name)
			fmt.Fprintf(b, "\t\tbOk = FromProto(Source.%s(), Out.%s, Context) && bOk;\n", name, field.Name)
			b.WriteString("\t}\n")
		} else {
			fmt.Fprintf(b, "\tOut.%s = %s;\n", field.Name, s.fromWireExpr(fieldSpec(field), fmt.Sprintf("Source.%s()", name)))
		}
	}
}

func (s *ConverterSet) writeOneofFromProto(b *strings.Builder, pair FuncPair, oneof *mapper.OneofWrapper) {
	if len(oneof.Cases) == 0 {
		return
	}
	fmt.Fprintf(b, "\tswitch (Source.%s_case()) {\n", strings.ToLower(oneof.Name))
	for _, oneofCase := range oneof.Cases {
		field := oneofCase.Field
		name := strings.ToLower(field.Source.Name)
		fmt.Fprintf(b, "\tcase %s::k%s: {\n", pair.ProtoType, strcase.ToCamel(field.Source.Name))
		if field.Kind == ir.KindMessage {
			fmt.Fprintf(b, "\t\t%s::FScopedPath ScopedPath(Context, TEXT(%q));\n", s.Context.ClassName, field.Name)
			fmt.Fprintf(b, "\t\tOut.%s.bIsSet = true;\n", field.Name)
			fmt.Fprintf(b, "\t\tbOk = FromProto(Source.%s(), Out.%s.Value, Context) && bOk;\n", name, field.Name)
		} else {
			fmt.Fprintf(b, "\t\tOut.%s.Value = %s;\n", field.Name, s.fromWireExpr(fieldSpec(field), fmt.Sprintf("Source.%s()", name)))
			fmt.Fprintf(b, "\t\tOut.%s.bIsSet = true;\n", field.Name)
		}
		b.WriteString("\t\tbreak;\n")
		b.WriteString("\t}\n")
	}
	b.WriteString("\tdefault: {\n")
	b.WriteString("\t\tbreak;\n")
	b.WriteString("\t}\n")
	b.WriteString("\t}\n")
}

func (s *ConverterSet) renderLibraryDeclaration() string {
	var b strings.Builder
	b.WriteString("UCLASS()\n")
	fmt.Fprintf(&b, "class %s : public UBlueprintFunctionLibrary {\n", s.LibraryName)
	b.WriteString("\tGENERATED_BODY()\n\n")
	b.WriteString("public:\n")
	category := "Proto|" + strings.TrimSuffix(strings.TrimPrefix(s.ClassName, "F"), "ProtoConv")
	for _, fn := range s.ByteFuncs {
		fmt.Fprintf(&b, "\tUFUNCTION(BlueprintCallable, Category = %q)\n", category)
		fmt.Fprintf(&b, "\tstatic bool %sToProtoBytes(const %s& Source, TArray<uint8>& OutBytes, FString& OutError);\n\n", fn.BaseName, fn.UEType)
		fmt.Fprintf(&b, "\tUFUNCTION(BlueprintCallable, Category = %q)\n", category)
		fmt.Fprintf(&b, "\tstatic bool %sFromProtoBytes(const TArray<uint8>& Bytes, %s& Out, FString& OutError);\n\n", fn.BaseName, fn.UEType)
	}
	b.WriteString("};\n")
	return b.String()
}

func (s *ConverterSet) renderLibraryDefinition() string {
	var b strings.Builder
	for i, fn := range s.ByteFuncs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "bool %s::%sToProtoBytes(const %s& Source, TArray<uint8>& OutBytes, FString& OutError) {\n",
			s.LibraryName, fn.BaseName, fn.UEType)
		fmt.Fprintf(&b, "\t%s Message;\n", fn.ProtoType)
		fmt.Fprintf(&b, "\t%s::%s Context;\n", s.ClassName, s.Context.ClassName)
		fmt.Fprintf(&b, "\t%s::ToProto(Source, Message, &Context);\n", s.ClassName)
		b.WriteString("\tif (Context.HasErrors()) {\n")
		b.WriteString("\t\tOutError = Context.CombinedMessage();\n")
		b.WriteString("\t\treturn false;\n")
		b.WriteString("\t}\n")
		b.WriteString("\tstd::string Buffer;\n")
		b.WriteString("\tif (!Message.SerializeToString(&Buffer)) {\n")
		b.WriteString("\t\tOutError = TEXT(\"failed to serialize protobuf payload\");\n")
		b.WriteString("\t\treturn false;\n")
		b.WriteString("\t}\n")
		b.WriteString("\tOutBytes.Reset();\n")
		b.WriteString("\tOutBytes.Append(reinterpret_cast<const uint8*>(Buffer.data()), Buffer.size());\n")
		b.WriteString("\treturn true;\n")
		b.WriteString("}\n\n")
		fmt.Fprintf(&b, "bool %s::%sFromProtoBytes(const TArray<uint8>& Bytes, %s& Out, FString& OutError) {\n",
			s.LibraryName, fn.BaseName, fn.UEType)
		fmt.Fprintf(&b, "\t%s Message;\n", fn.ProtoType)
		b.WriteString("\tif (!Message.ParseFromArray(Bytes.GetData(), Bytes.Num())) {\n")
		b.WriteString("\t\tOutError = TEXT(\"malformed protobuf payload\");\n")
		b.WriteString("\t\treturn false;\n")
		b.WriteString("\t}\n")
		fmt.Fprintf(&b, "\t%s::%s Context;\n", s.ClassName, s.Context.ClassName)
		fmt.Fprintf(&b, "\tif (!%s::FromProto(Message, Out, &Context)) {\n", s.ClassName)
		b.WriteString("\t\tOutError = Context.CombinedMessage();\n")
		b.WriteString("\t\tif (OutError.IsEmpty()) {\n")
		b.WriteString("\t\t\tOutError = TEXT(\"conversion failed\");\n")
		b.WriteString("\t\t}\n")
		b.WriteString("\t\treturn false;\n")
		b.WriteString("\t}\n")
		b.WriteString("\treturn true;\n")
		b.WriteString("}\n")
	}
	return b.String()
}

// valueSpec описывает одну конвертируемую величину: поле, ключ map
// или значение map
type valueSpec struct {
	Kind       ir.FieldKind
	WireScalar string
	UEType     string
	TypeName   string
}

func fieldSpec(field *mapper.Field) valueSpec {
	return valueSpec{
		Kind:       field.Kind,
		WireScalar: field.Source.Scalar,
		UEType:     field.BaseType,
		TypeName:   field.Source.TypeName,
	}
}

func mapKeySpec(field *mapper.Field) valueSpec {
	return valueSpec{
		Kind:       field.Source.Map.KeyKind,
		WireScalar: field.Source.Map.KeyScalar,
		UEType:     field.MapKeyType,
		TypeName:   field.Source.Map.KeyTypeName,
	}
}

func mapValueSpec(field *mapper.Field) valueSpec {
	return valueSpec{
		Kind:       field.Source.Map.ValueKind,
		WireScalar: field.Source.Map.ValueScalar,
		UEType:     field.MapValueType,
		TypeName:   field.Source.Map.ValueTypeName,
	}
}

func (s *ConverterSet) toWireExpr(spec valueSpec, src string) string {
	if spec.Kind == ir.KindEnum {
		return fmt.Sprintf("static_cast<%s>(%s)", protoQualify(spec.TypeName), src)
	}
	switch spec.WireScalar {
	case "string":
		return fmt.Sprintf("ToProtoString(%s)", src)
	case "bytes":
		return fmt.Sprintf("ToProtoBytes(%s)", src)
	}
	if cpp, ok := wireCppTypes[spec.WireScalar]; ok && cpp != spec.UEType {
		return fmt.Sprintf("static_cast<%s>(%s)", cpp, src)
	}
	return src
}

func (s *ConverterSet) fromWireExpr(spec valueSpec, src string) string {
	if spec.Kind == ir.KindEnum {
		return fmt.Sprintf("static_cast<%s>(%s)", s.qualifyUE(spec.UEType), src)
	}
	switch spec.WireScalar {
	case "string":
		return fmt.Sprintf("FromProtoString(%s)", src)
	case "bytes":
		return fmt.Sprintf("FromProtoBytes(%s)", src)
	}
	if cpp, ok := wireCppTypes[spec.WireScalar]; ok && cpp != spec.UEType {
		return fmt.Sprintf("static_cast<%s>(%s)", spec.UEType, src)
	}
	return src
}

func (s *ConverterSet) qualifyUE(name string) string {
	if s.File.FoldPackage || s.File.Package == "" {
		return name
	}
	return strings.Join(strings.Split(s.File.Package, "."), "::") + "::" + name
}

func protoQualify(typeName string) string {
	return strings.Join(strings.Split(typeName, "."), "::")
}

func protoPbHeader(protoName string) string {
	return strings.TrimSuffix(path.Base(protoName), ".proto") + ".pb.h"
}
