package convgen

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ConversionErrorKind различает обычные ошибки значений и нарушение
// эксклюзивности oneof
type ConversionErrorKind int

const (
	ErrValueConversion ConversionErrorKind = iota
	ErrOneofMultiplePresent
)

// ConversionError — одна накопленная ошибка конвертации
type ConversionError struct {
	Kind      ConversionErrorKind
	FieldPath string
	Message   string
}

// ConversionContext накапливает ошибки конвертации; первая ошибка
// не прерывает обход
type ConversionContext struct {
	path []string
	errs []ConversionError
}

func NewConversionContext() *ConversionContext {
	return &ConversionContext{}
}

func (c *ConversionContext) AddError(field, message string) {
	c.addError(ErrValueConversion, field, message)
}

func (c *ConversionContext) addError(kind ConversionErrorKind, field, message string) {
	c.errs = append(c.errs, ConversionError{
		Kind:      kind,
		FieldPath: c.joinPath(field),
		Message:   message,
	})
}

func (c *ConversionContext) HasErrors() bool {
	return len(c.errs) > 0
}

func (c *ConversionContext) Errors() []ConversionError {
	return c.errs
}

func (c *ConversionContext) CombinedMessage() string {
	parts := make([]string, 0, len(c.errs))
	for _, e := range c.errs {
		parts = append(parts, e.FieldPath+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}

func (c *ConversionContext) pushPath(segment string) {
	c.path = append(c.path, segment)
}

func (c *ConversionContext) popPath() {
	c.path = c.path[:len(c.path)-1]
}

func (c *ConversionContext) joinPath(field string) string {
	if len(c.path) == 0 {
		return field
	}
	return strings.Join(c.path, ".") + "." + field
}

// Optional — значение с явным флагом присутствия, аналог генерируемой
// optional-обёртки
type Optional struct {
	IsSet bool
	Value any
}

func Some(value any) Optional {
	return Optional{IsSet: true, Value: value}
}

func None() Optional {
	return Optional{}
}

// Runtime исполняет семантику генерируемых конвертеров над
// динамическими сообщениями. Модель значений:
// message — map[string]any по proto-именам полей, singular-поле вне
// oneof и член oneof — Optional, repeated — []any, map — map[any]any.
type Runtime struct {
	files *protoregistry.Files
}

func NewRuntime(set *descriptorpb.FileDescriptorSet) (*Runtime, error) {
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return nil, errors.Wrap(err, "build descriptor registry")
	}
	return &Runtime{files: files}, nil
}

func (r *Runtime) messageDescriptor(fullName string) (protoreflect.MessageDescriptor, error) {
	desc, err := r.files.FindDescriptorByName(protoreflect.FullName(fullName))
	if err != nil {
		return nil, errors.Wrapf(err, "resolve message %q", fullName)
	}
	md, ok := desc.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, errors.Newf("descriptor %q is not a message", fullName)
	}
	return md, nil
}

// ToProto конвертирует UE-значение в wire-сообщение. Ошибки значений
// накапливаются в контексте, обход не прерывается.
func (r *Runtime) ToProto(fullName string, value map[string]any, ctx *ConversionContext) (*dynamicpb.Message, error) {
	md, err := r.messageDescriptor(fullName)
	if err != nil {
		return nil, err
	}
	msg := dynamicpb.NewMessage(md)
	r.fillMessage(msg, value, ctx)
	return msg, nil
}

// FromProto конвертирует wire-сообщение в UE-значение. Неуспех вложенной
// конвертации не прерывает обход остальных полей.
func (r *Runtime) FromProto(msg protoreflect.Message, ctx *ConversionContext) map[string]any {
	md := msg.Descriptor()
	out := make(map[string]any)

	chosen := make(map[protoreflect.FullName]protoreflect.FieldDescriptor)
	oneofs := md.Oneofs()
	for i := 0; i < oneofs.Len(); i++ {
		od := oneofs.Get(i)
		if od.IsSynthetic() {
			continue
		}
		if fd := msg.WhichOneof(od); fd != nil {
			chosen[od.FullName()] = fd
		}
	}

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		name := string(fd.Name())
		switch {
		case fd.IsMap():
			out[name] = r.mapFromProto(fd, msg.Get(fd).Map(), ctx)
		case fd.IsList():
			out[name] = r.listFromProto(fd, msg.Get(fd).List(), ctx)
		case realOneof(fd) != nil:
			od := realOneof(fd)
			if chosen[od.FullName()] == fd {
				out[name] = Some(r.valueFromProto(fd, msg.Get(fd), ctx))
			} else {
				out[name] = None()
			}
		case fd.Cardinality() == protoreflect.Required:
			out[name] = r.valueFromProto(fd, msg.Get(fd), ctx)
		default:
			if msg.Has(fd) {
				out[name] = Some(r.valueFromProto(fd, msg.Get(fd), ctx))
			} else {
				out[name] = None()
			}
		}
	}
	return out
}

// ToProtoBytes сериализует UE-значение в protobuf-байты; ошибки
// конвертации агрегируются в одну
func (r *Runtime) ToProtoBytes(fullName string, value map[string]any) ([]byte, error) {
	ctx := NewConversionContext()
	msg, err := r.ToProto(fullName, value, ctx)
	if err != nil {
		return nil, err
	}
	if ctx.HasErrors() {
		return nil, errors.Newf("conversion failed: %s", ctx.CombinedMessage())
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "serialize protobuf payload")
	}
	return data, nil
}

// FromProtoBytes разбирает protobuf-байты в UE-значение. Ошибка формата
// и ошибка конвертации различимы по тексту.
func (r *Runtime) FromProtoBytes(fullName string, data []byte) (map[string]any, error) {
	md, err := r.messageDescriptor(fullName)
	if err != nil {
		return nil, err
	}
	msg := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, errors.Wrap(err, "malformed protobuf payload")
	}
	ctx := NewConversionContext()
	out := r.FromProto(msg, ctx)
	if ctx.HasErrors() {
		return nil, errors.Newf("conversion failed: %s", ctx.CombinedMessage())
	}
	return out, nil
}

func (r *Runtime) fillMessage(msg *dynamicpb.Message, value map[string]any, ctx *ConversionContext) {
	md := msg.Descriptor()

	oneofs := md.Oneofs()
	for i := 0; i < oneofs.Len(); i++ {
		od := oneofs.Get(i)
		if od.IsSynthetic() {
			continue
		}
		r.fillOneof(msg, od, value, ctx)
	}

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if realOneof(fd) != nil {
			continue
		}
		raw, ok := value[string(fd.Name())]
		if !ok || raw == nil {
			continue
		}
		r.fillField(msg, fd, raw, ctx)
	}
}

// fillOneof пишет в wire не более одного члена oneof; если предоставлено
// больше одного, фиксируется ошибка и группа остаётся незаполненной
func (r *Runtime) fillOneof(msg *dynamicpb.Message, od protoreflect.OneofDescriptor, value map[string]any, ctx *ConversionContext) {
	type provided struct {
		fd  protoreflect.FieldDescriptor
		val any
	}
	var set []provided
	members := od.Fields()
	for i := 0; i < members.Len(); i++ {
		fd := members.Get(i)
		raw, ok := value[string(fd.Name())]
		if !ok {
			continue
		}
		opt, ok := raw.(Optional)
		if !ok {
			ctx.AddError(string(fd.Name()), fmt.Sprintf("oneof member must be an Optional, got %T", raw))
			continue
		}
		if opt.IsSet {
			set = append(set, provided{fd: fd, val: opt.Value})
		}
	}
	if len(set) > 1 {
		ctx.addError(ErrOneofMultiplePresent, string(od.Name()), "more than one oneof member is provided")
		return
	}
	if len(set) == 1 {
		r.setSingular(msg, set[0].fd, set[0].val, ctx)
	}
}

func (r *Runtime) fillField(msg *dynamicpb.Message, fd protoreflect.FieldDescriptor, raw any, ctx *ConversionContext) {
	name := string(fd.Name())
	switch {
	case fd.IsMap():
		entries, ok := raw.(map[any]any)
		if !ok {
			ctx.AddError(name, fmt.Sprintf("map field expects map[any]any, got %T", raw))
			return
		}
		dst := msg.Mutable(fd).Map()
		ctx.pushPath(name)
		for k, v := range entries {
			key, ok := r.toProtoValue(fd.MapKey(), k, ctx, "key")
			if !ok {
				continue
			}
			val, ok := r.toProtoValue(fd.MapValue(), v, ctx, "value")
			if !ok {
				continue
			}
			dst.Set(key.MapKey(), val)
		}
		ctx.popPath()
	case fd.IsList():
		items, ok := raw.([]any)
		if !ok {
			ctx.AddError(name, fmt.Sprintf("repeated field expects []any, got %T", raw))
			return
		}
		dst := msg.Mutable(fd).List()
		ctx.pushPath(name)
		for _, item := range items {
			if val, ok := r.toProtoValue(fd, item, ctx, "item"); ok {
				dst.Append(val)
			}
		}
		ctx.popPath()
	case fd.Cardinality() == protoreflect.Required:
		r.setSingular(msg, fd, raw, ctx)
	default:
		opt, ok := raw.(Optional)
		if !ok {
			ctx.AddError(name, fmt.Sprintf("singular field expects an Optional, got %T", raw))
			return
		}
		if opt.IsSet {
			r.setSingular(msg, fd, opt.Value, ctx)
		}
	}
}

func (r *Runtime) setSingular(msg *dynamicpb.Message, fd protoreflect.FieldDescriptor, raw any, ctx *ConversionContext) {
	if fd.Kind() == protoreflect.MessageKind || fd.Kind() == protoreflect.GroupKind {
		nested, ok := raw.(map[string]any)
		if !ok {
			ctx.AddError(string(fd.Name()), fmt.Sprintf("message field expects map[string]any, got %T", raw))
			return
		}
		dst := msg.Mutable(fd).Message().Interface().(*dynamicpb.Message)
		ctx.pushPath(string(fd.Name()))
		r.fillMessage(dst, nested, ctx)
		ctx.popPath()
		return
	}
	if val, ok := r.toProtoValue(fd, raw, ctx, string(fd.Name())); ok {
		msg.Set(fd, val)
	}
}

// toProtoValue приводит UE-значение к protoreflect.Value; несоответствие
// типа — накопленная ошибка, не паника
func (r *Runtime) toProtoValue(fd protoreflect.FieldDescriptor, raw any, ctx *ConversionContext, label string) (protoreflect.Value, bool) {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		nested, ok := raw.(map[string]any)
		if !ok {
			ctx.AddError(label, fmt.Sprintf("message value expects map[string]any, got %T", raw))
			return protoreflect.Value{}, false
		}
		sub := dynamicpb.NewMessage(fd.Message())
		ctx.pushPath(label)
		r.fillMessage(sub, nested, ctx)
		ctx.popPath()
		return protoreflect.ValueOfMessage(sub), true
	case protoreflect.EnumKind:
		if v, ok := asInt64(raw); ok {
			return protoreflect.ValueOfEnum(protoreflect.EnumNumber(v)), true
		}
	case protoreflect.BoolKind:
		if v, ok := raw.(bool); ok {
			return protoreflect.ValueOfBool(v), true
		}
	case protoreflect.StringKind:
		if v, ok := raw.(string); ok {
			return protoreflect.ValueOfString(v), true
		}
	case protoreflect.BytesKind:
		if v, ok := raw.([]byte); ok {
			return protoreflect.ValueOfBytes(v), true
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if v, ok := asInt64(raw); ok {
			return protoreflect.ValueOfInt32(int32(v)), true
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if v, ok := asInt64(raw); ok {
			return protoreflect.ValueOfInt64(v), true
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if v, ok := asUint64(raw); ok {
			return protoreflect.ValueOfUint32(uint32(v)), true
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if v, ok := asUint64(raw); ok {
			return protoreflect.ValueOfUint64(v), true
		}
	case protoreflect.FloatKind:
		if v, ok := raw.(float32); ok {
			return protoreflect.ValueOfFloat32(v), true
		}
	case protoreflect.DoubleKind:
		if v, ok := raw.(float64); ok {
			return protoreflect.ValueOfFloat64(v), true
		}
	}
	ctx.AddError(label, fmt.Sprintf("unsupported value %T for %s field", raw, fd.Kind()))
	return protoreflect.Value{}, false
}

func (r *Runtime) valueFromProto(fd protoreflect.FieldDescriptor, value protoreflect.Value, ctx *ConversionContext) any {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		ctx.pushPath(string(fd.Name()))
		out := r.FromProto(value.Message(), ctx)
		ctx.popPath()
		return out
	case protoreflect.EnumKind:
		return int32(value.Enum())
	case protoreflect.BytesKind:
		return append([]byte(nil), value.Bytes()...)
	default:
		return value.Interface()
	}
}

func (r *Runtime) listFromProto(fd protoreflect.FieldDescriptor, list protoreflect.List, ctx *ConversionContext) []any {
	out := make([]any, 0, list.Len())
	ctx.pushPath(string(fd.Name()))
	for i := 0; i < list.Len(); i++ {
		out = append(out, r.elementFromProto(fd, list.Get(i), ctx))
	}
	ctx.popPath()
	return out
}

func (r *Runtime) mapFromProto(fd protoreflect.FieldDescriptor, entries protoreflect.Map, ctx *ConversionContext) map[any]any {
	out := make(map[any]any, entries.Len())
	ctx.pushPath(string(fd.Name()))
	entries.Range(func(key protoreflect.MapKey, value protoreflect.Value) bool {
		out[key.Interface()] = r.elementFromProto(fd.MapValue(), value, ctx)
		return true
	})
	ctx.popPath()
	return out
}

// elementFromProto — как valueFromProto, но без повторного сегмента пути:
// путь контейнера уже открыт вызывающим
func (r *Runtime) elementFromProto(fd protoreflect.FieldDescriptor, value protoreflect.Value, ctx *ConversionContext) any {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return r.FromProto(value.Message(), ctx)
	case protoreflect.EnumKind:
		return int32(value.Enum())
	case protoreflect.BytesKind:
		return append([]byte(nil), value.Bytes()...)
	default:
		return value.Interface()
	}
}

func realOneof(fd protoreflect.FieldDescriptor) protoreflect.OneofDescriptor {
	od := fd.ContainingOneof()
	if od == nil || od.IsSynthetic() {
		return nil
	}
	return od
}

func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func asUint64(raw any) (uint64, bool) {
	switch v := raw.(type) {
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	}
	return 0, false
}
