package mapper

import (
	_ "embed"
	"fmt"

	"github.com/go-faster/jx"
	"github.com/iancoleman/strcase"
)

//go:embed naming_config.json
var defaultNamingConfig []byte

// NamingRules описывает политику выдачи UE-имён: зарезервированные
// идентификаторы, явные переименования и вставку для разрешения коллизий.
type NamingRules struct {
	ReservedSymbols map[string]bool
	Overrides       map[string]string
	CollisionInsert string
}

// DefaultNamingRules возвращает правила из встроенного naming_config.json
func DefaultNamingRules() NamingRules {
	rules, err := ParseNamingRules(defaultNamingConfig)
	if err != nil {
		// встроенный конфиг валидируется тестами
		panic(fmt.Sprintf("embedded naming config: %v", err))
	}
	return rules
}

// ParseNamingRules читает JSON с ключами reserved_symbols, overrides
// и collision_suffix
func ParseNamingRules(data []byte) (NamingRules, error) {
	rules := NamingRules{
		ReservedSymbols: make(map[string]bool),
		Overrides:       make(map[string]string),
		CollisionInsert: "Proto",
	}
	decoder := jx.DecodeBytes(data)
	err := decoder.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "reserved_symbols":
			return d.Arr(func(d *jx.Decoder) error {
				symbol, err := d.Str()
				if err != nil {
					return err
				}
				if symbol != "" {
					rules.ReservedSymbols[symbol] = true
				}
				return nil
			})
		case "overrides":
			return d.Obj(func(d *jx.Decoder, protoName string) error {
				ueName, err := d.Str()
				if err != nil {
					return err
				}
				if protoName != "" && ueName != "" {
					rules.Overrides[protoName] = ueName
				}
				return nil
			})
		case "collision_suffix":
			insert, err := d.Str()
			if err != nil {
				return err
			}
			if insert != "" {
				rules.CollisionInsert = insert
			}
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return NamingRules{}, fmt.Errorf("parse naming rules: %w", err)
	}
	return rules, nil
}

// WithOverrides возвращает копию правил с добавленными переименованиями
func (r NamingRules) WithOverrides(overrides map[string]string) NamingRules {
	merged := NamingRules{
		ReservedSymbols: r.ReservedSymbols,
		Overrides:       make(map[string]string, len(r.Overrides)+len(overrides)),
		CollisionInsert: r.CollisionInsert,
	}
	for name, ueName := range r.Overrides {
		merged.Overrides[name] = ueName
	}
	for name, ueName := range overrides {
		if ueName != "" {
			merged.Overrides[name] = ueName
		}
	}
	return merged
}

// NameResolver выдаёт коллизионно-свободные UE-имена.
// Все выданные имена запоминаются, два типа никогда не получат одно имя.
type NameResolver struct {
	rules    NamingRules
	reserved map[string]bool
	symbols  map[string]string
}

func NewNameResolver(rules NamingRules, additionalReserved ...string) *NameResolver {
	reserved := make(map[string]bool, len(rules.ReservedSymbols)+len(additionalReserved))
	for symbol := range rules.ReservedSymbols {
		reserved[symbol] = true
	}
	for _, symbol := range additionalReserved {
		if symbol != "" {
			reserved[symbol] = true
		}
	}
	return &NameResolver{
		rules:    rules,
		reserved: reserved,
		symbols:  make(map[string]string),
	}
}

// Register выдаёт имя для fullName: prefix + suffix с детерминированным
// разрешением коллизий. Повторная регистрация возвращает прежнее имя.
func (r *NameResolver) Register(fullName, prefix, suffix string) (string, error) {
	if name, ok := r.symbols[fullName]; ok {
		return name, nil
	}
	if override, ok := r.rules.Overrides[fullName]; ok {
		if r.reserved[override] {
			return "", fmt.Errorf(
				"rename override %q for %q conflicts with an existing UE symbol",
				override, fullName,
			)
		}
		r.reserved[override] = true
		r.symbols[fullName] = override
		return override, nil
	}
	name := r.makeUnique(prefix, suffix)
	r.symbols[fullName] = name
	return name, nil
}

// Lookup возвращает уже выданное имя
func (r *NameResolver) Lookup(fullName string) (string, bool) {
	name, ok := r.symbols[fullName]
	return name, ok
}

func (r *NameResolver) makeUnique(prefix, suffix string) string {
	candidate := prefix + suffix
	if !r.reserved[candidate] {
		r.reserved[candidate] = true
		return candidate
	}
	baseSuffix := r.rules.CollisionInsert
	if suffix != "" {
		baseSuffix = r.rules.CollisionInsert + suffix
	}
	for attempt := 1; ; attempt++ {
		adjusted := baseSuffix
		if attempt > 1 {
			adjusted = fmt.Sprintf("%s%d", baseSuffix, attempt-1)
		}
		candidate = prefix + adjusted
		if !r.reserved[candidate] {
			r.reserved[candidate] = true
			return candidate
		}
	}
}

// pascalCase переводит proto-идентификатор в PascalCase, сохраняя
// уже имеющиеся заглавные ("Vector2D" остаётся "Vector2D")
func pascalCase(name string) string {
	if name == "" {
		return name
	}
	return strcase.ToCamel(name)
}
