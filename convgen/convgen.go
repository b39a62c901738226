package convgen

import (
	"strings"

	"github.com/samber/lo"
	"github.com/yaroher/protoc-gen-ue-plain/mapper"
)

// ContextDesc описывает генерируемый контекст накопления ошибок
type ContextDesc struct {
	ErrorStruct string
	ClassName   string
}

// FuncPair — пара функций конвертации одного сообщения:
// to-wire и from-wire
type FuncPair struct {
	Message   *mapper.Message
	UEType    string
	ProtoType string
}

// ByteFuncPair — пара byte-entry-point функций верхнеуровневого сообщения
type ByteFuncPair struct {
	BaseName  string
	UEType    string
	ProtoType string
}

// ConverterSet — дескрипторы конвертеров одного файла.
// Строится из того же UE-графа, что и renderer типов, независимо от него.
type ConverterSet struct {
	File *mapper.File
	// ClassName — класс-контейнер статических функций конвертации
	ClassName string
	// LibraryName — blueprint-библиотека byte-entry-point функций
	LibraryName string
	Context     ContextDesc
	Funcs       []FuncPair
	ByteFuncs   []ByteFuncPair
}

// Generate строит дескрипторы конвертеров для файла
func Generate(file *mapper.File) *ConverterSet {
	className := converterClassName(file)
	set := &ConverterSet{
		File:        file,
		ClassName:   className,
		LibraryName: "U" + strings.TrimPrefix(className, "F") + "Library",
		Context: ContextDesc{
			ErrorStruct: "FConversionError",
			ClassName:   "FConversionContext",
		},
	}
	for _, message := range collectMessages(file.Messages) {
		set.Funcs = append(set.Funcs, FuncPair{
			Message:   message,
			UEType:    qualifiedUEType(file, message),
			ProtoType: qualifiedProtoType(message),
		})
	}
	// byte-entry-point только для верхнеуровневых сообщений
	for _, message := range file.Messages {
		set.ByteFuncs = append(set.ByteFuncs, ByteFuncPair{
			BaseName:  strings.TrimPrefix(message.UEName, "F"),
			UEType:    qualifiedUEType(file, message),
			ProtoType: qualifiedProtoType(message),
		})
	}
	return set
}

func collectMessages(messages []*mapper.Message) []*mapper.Message {
	var out []*mapper.Message
	for _, message := range messages {
		out = append(out, message)
		out = append(out, collectMessages(message.NestedMessages)...)
	}
	return out
}

func converterClassName(file *mapper.File) string {
	segments := strings.Split(file.Package, ".")
	name := strings.Join(lo.Map(segments, func(segment string, _ int) string {
		return pascal(segment)
	}), "")
	if name == "" {
		name = "File"
	}
	return "F" + name + "ProtoConv"
}

func qualifiedProtoType(message *mapper.Message) string {
	return strings.Join(strings.Split(message.FullName, "."), "::")
}

func qualifiedUEType(file *mapper.File, message *mapper.Message) string {
	if file.FoldPackage || file.Package == "" {
		return message.UEName
	}
	return strings.Join(strings.Split(file.Package, "."), "::") + "::" + message.UEName
}

func pascal(segment string) string {
	if segment == "" {
		return ""
	}
	return strings.ToUpper(segment[:1]) + segment[1:]
}
