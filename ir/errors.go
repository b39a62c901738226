package ir

import "fmt"

// MalformedDescriptorError — структурно некорректный входной дескриптор.
// Фатальна для всего запуска.
type MalformedDescriptorError struct {
	File   string
	Symbol string
	Reason string
}

func (e MalformedDescriptorError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("malformed descriptor in %s: %s: %s", e.File, e.Symbol, e.Reason)
	}
	return fmt.Sprintf("malformed descriptor in %s: %s", e.File, e.Reason)
}

// UnsupportedFeatureError — распознанная, но не поддерживаемая возможность
// wire-формата (extensions, group-поля)
type UnsupportedFeatureError struct {
	Feature string
	File    string
	Symbol  string
}

func (e UnsupportedFeatureError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("unsupported feature %q at %s in %s", e.Feature, e.Symbol, e.File)
	}
	return fmt.Sprintf("unsupported feature %q in %s", e.Feature, e.File)
}

// DanglingReferenceError — поле ссылается на тип, который не удалось
// разрешить среди файла и его зависимостей
type DanglingReferenceError struct {
	File     string
	Field    string
	TypeName string
}

func (e DanglingReferenceError) Error() string {
	return fmt.Sprintf(
		"dangling type reference %q for field %q in %s",
		e.TypeName, e.Field, e.File,
	)
}
