package generator

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-faster/jx"
	"github.com/yaroher/protoc-gen-ue-plain/logger"
	"github.com/yaroher/protoc-gen-ue-plain/mapper"
	"go.uber.org/zap"
	"google.golang.org/protobuf/compiler/protogen"
)

// PluginSettings — разобранные параметры плагина.
// Формат: пары key=value через запятую в parameter запроса protoc.
type PluginSettings struct {
	// ConvertUnsignedForBlueprint — uint32/uint64 как int32/int64
	ConvertUnsignedForBlueprint bool
	// IncludePackageInNames — сегменты пакета в именах типов
	// вместо namespace-скоупов
	IncludePackageInNames bool
	// ReservedIdentifiers заменяет встроенный набор (разделитель ;)
	ReservedIdentifiers []string
	// ExtraReservedIdentifiers дополняет встроенный набор (разделитель ;)
	ExtraReservedIdentifiers []string
	// RenameOverrides — переименования по полному proto-имени,
	// загружаются из JSON-файла, указанного в rename_overrides
	RenameOverrides map[string]string
}

func mapGetOrDefault(paramsMap map[string]string, key string, defaultValue string) string {
	if val, ok := paramsMap[key]; ok {
		return val
	}
	return defaultValue
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func NewPluginSettingsFromPlugin(p *protogen.Plugin) (*PluginSettings, error) {
	paramsMap := make(map[string]string)
	logger.Debug("plugin parameter", zap.String("raw", p.Request.GetParameter()))
	params := strings.Split(p.Request.GetParameter(), ",")
	for _, param := range params {
		paramSplit := strings.SplitN(param, "=", 2)
		if len(paramSplit) != 2 {
			continue
		}
		paramsMap[paramSplit[0]] = paramSplit[1]
	}

	settings := &PluginSettings{
		ConvertUnsignedForBlueprint: mapGetOrDefault(paramsMap, "convert_unsigned_for_blueprint", "false") == "true",
		IncludePackageInNames:       mapGetOrDefault(paramsMap, "include_package_in_names", "false") == "true",
		ReservedIdentifiers:         splitList(mapGetOrDefault(paramsMap, "reserved_identifiers", "")),
		ExtraReservedIdentifiers:    splitList(mapGetOrDefault(paramsMap, "extra_reserved_identifiers", "")),
	}
	if overridesPath := mapGetOrDefault(paramsMap, "rename_overrides", ""); overridesPath != "" {
		overrides, err := loadRenameOverrides(overridesPath)
		if err != nil {
			return nil, err
		}
		settings.RenameOverrides = overrides
	}
	return settings, nil
}

// MapperConfig переводит настройки плагина в конфигурацию маппера
func (s *PluginSettings) MapperConfig() mapper.Config {
	return mapper.Config{
		ConvertUnsignedForBlueprint: s.ConvertUnsignedForBlueprint,
		IncludePackageInNames:       s.IncludePackageInNames,
		ReservedIdentifiers:         s.ReservedIdentifiers,
		ExtraReservedIdentifiers:    s.ExtraReservedIdentifiers,
		RenameOverrides:             s.RenameOverrides,
	}
}

func loadRenameOverrides(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read rename overrides %q", path)
	}
	overrides := make(map[string]string)
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		value, err := d.Str()
		if err != nil {
			return err
		}
		overrides[key] = value
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "parse rename overrides %q", path)
	}
	return overrides, nil
}
