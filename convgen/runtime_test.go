package convgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// personDescriptorSet — proto3-файл с explicit optional скалярами,
// map, repeated и настоящим oneof
func personDescriptorSet() *descriptorpb.FileDescriptorSet {
	labelsEntry := &descriptorpb.DescriptorProto{
		Name: proto.String("LabelsEntry"),
		Field: []*descriptorpb.FieldDescriptorProto{
			{
				Name:   proto.String("key"),
				Number: proto.Int32(1),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
			},
			{
				Name:   proto.String("value"),
				Number: proto.Int32(2),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:   descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(),
			},
		},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}

	address := &descriptorpb.DescriptorProto{
		Name: proto.String("Address"),
		Field: []*descriptorpb.FieldDescriptorProto{
			{
				Name:           proto.String("city"),
				Number:         proto.Int32(1),
				Label:          descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:           descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
				Proto3Optional: proto.Bool(true),
				OneofIndex:     proto.Int32(0),
			},
		},
		OneofDecl: []*descriptorpb.OneofDescriptorProto{
			{Name: proto.String("_city")},
		},
	}

	person := &descriptorpb.DescriptorProto{
		Name:       proto.String("Person"),
		NestedType: []*descriptorpb.DescriptorProto{labelsEntry},
		Field: []*descriptorpb.FieldDescriptorProto{
			{
				Name:           proto.String("id"),
				Number:         proto.Int32(1),
				Label:          descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:           descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(),
				Proto3Optional: proto.Bool(true),
				OneofIndex:     proto.Int32(1),
			},
			{
				Name:           proto.String("name"),
				Number:         proto.Int32(2),
				Label:          descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:           descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
				Proto3Optional: proto.Bool(true),
				OneofIndex:     proto.Int32(2),
			},
			{
				Name:     proto.String("labels"),
				Number:   proto.Int32(3),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
				TypeName: proto.String(".demo.Person.LabelsEntry"),
			},
			{
				Name:   proto.String("scores"),
				Number: proto.Int32(4),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
				Type:   descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(),
			},
			{
				Name:       proto.String("email"),
				Number:     proto.Int32(5),
				Label:      descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:       descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
				OneofIndex: proto.Int32(0),
			},
			{
				Name:       proto.String("home"),
				Number:     proto.Int32(6),
				Label:      descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:       descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
				TypeName:   proto.String(".demo.Address"),
				OneofIndex: proto.Int32(0),
			},
			{
				Name:     proto.String("address"),
				Number:   proto.Int32(7),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
				TypeName: proto.String(".demo.Address"),
			},
		},
		OneofDecl: []*descriptorpb.OneofDescriptorProto{
			{Name: proto.String("contact")},
			{Name: proto.String("_id")},
			{Name: proto.String("_name")},
		},
	}

	return &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{{
			Name:        proto.String("person.proto"),
			Package:     proto.String("demo"),
			Syntax:      proto.String("proto3"),
			MessageType: []*descriptorpb.DescriptorProto{address, person},
		}},
	}
}

func newPersonRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := NewRuntime(personDescriptorSet())
	require.NoError(t, err)
	return rt
}

func TestRuntime_RoundTrip(t *testing.T) {
	rt := newPersonRuntime(t)

	person := map[string]any{
		"id":     Some(int32(7)),
		"name":   Some("alice"),
		"labels": map[any]any{"a": int32(1), "b": int32(2)},
		"scores": []any{int32(3), int32(4)},
		"email":  Some("alice@example.com"),
		"home":   None(),
		"address": Some(map[string]any{
			"city": Some("Oslo"),
		}),
	}

	data, err := rt.ToProtoBytes("demo.Person", person)
	require.NoError(t, err)

	decoded, err := rt.FromProtoBytes("demo.Person", data)
	require.NoError(t, err)
	assert.Equal(t, person, decoded)
}

func TestRuntime_RoundTripUnsetAndEmpty(t *testing.T) {
	rt := newPersonRuntime(t)

	person := map[string]any{
		"id":      None(),
		"name":    None(),
		"labels":  map[any]any{},
		"scores":  []any{},
		"email":   None(),
		"home":    Some(map[string]any{"city": None()}),
		"address": None(),
	}

	data, err := rt.ToProtoBytes("demo.Person", person)
	require.NoError(t, err)

	decoded, err := rt.FromProtoBytes("demo.Person", data)
	require.NoError(t, err)
	assert.Equal(t, person, decoded)
}

func TestRuntime_OneofExclusivity(t *testing.T) {
	rt := newPersonRuntime(t)

	person := map[string]any{
		"email": Some("alice@example.com"),
		"home":  Some(map[string]any{"city": Some("Oslo")}),
	}

	ctx := NewConversionContext()
	msg, err := rt.ToProto("demo.Person", person, ctx)
	require.NoError(t, err)

	require.True(t, ctx.HasErrors())
	require.Len(t, ctx.Errors(), 1)
	assert.Equal(t, "contact", ctx.Errors()[0].FieldPath)
	assert.Equal(t, ErrOneofMultiplePresent, ctx.Errors()[0].Kind)
	assert.Equal(t, "more than one oneof member is provided", ctx.Errors()[0].Message)

	// wire-группа остаётся незаполненной
	fields := msg.Descriptor().Fields()
	assert.False(t, msg.Has(fields.ByName("email")))
	assert.False(t, msg.Has(fields.ByName("home")))
}

func TestRuntime_SingleOneofMemberPasses(t *testing.T) {
	rt := newPersonRuntime(t)

	ctx := NewConversionContext()
	msg, err := rt.ToProto("demo.Person", map[string]any{
		"email": Some("alice@example.com"),
		"home":  None(),
	}, ctx)
	require.NoError(t, err)
	assert.False(t, ctx.HasErrors())
	assert.True(t, msg.Has(msg.Descriptor().Fields().ByName("email")))
}

func TestRuntime_ErrorAccumulation(t *testing.T) {
	rt := newPersonRuntime(t)

	ctx := NewConversionContext()
	_, err := rt.ToProto("demo.Person", map[string]any{
		"id":      Some("not-an-int"),
		"scores":  []any{int32(1), "broken", int32(2)},
		"address": Some(map[string]any{"city": Some(int32(5))}),
	}, ctx)
	require.NoError(t, err)

	// все ошибки собраны за один проход
	require.Len(t, ctx.Errors(), 3)
	paths := make([]string, 0, len(ctx.Errors()))
	for _, convErr := range ctx.Errors() {
		paths = append(paths, convErr.FieldPath)
	}
	assert.Contains(t, paths, "id")
	assert.Contains(t, paths, "scores.item")
	assert.Contains(t, paths, "address.city")
	assert.Contains(t, ctx.CombinedMessage(), "; ")
}

func TestRuntime_ToProtoBytesConversionFailure(t *testing.T) {
	rt := newPersonRuntime(t)

	_, err := rt.ToProtoBytes("demo.Person", map[string]any{
		"id": Some("not-an-int"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conversion failed")
}

func TestRuntime_FromProtoBytesMalformed(t *testing.T) {
	rt := newPersonRuntime(t)

	_, err := rt.FromProtoBytes("demo.Person", []byte{0xFF, 0xFF, 0xFF})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed protobuf payload")
}

func TestRuntime_UnknownMessage(t *testing.T) {
	rt := newPersonRuntime(t)

	_, err := rt.ToProtoBytes("demo.Missing", map[string]any{})
	assert.Error(t, err)
}

func TestConversionContext_Paths(t *testing.T) {
	ctx := NewConversionContext()
	ctx.AddError("id", "bad value")
	ctx.pushPath("address")
	ctx.AddError("city", "bad value")
	ctx.popPath()

	require.Len(t, ctx.Errors(), 2)
	assert.Equal(t, "id", ctx.Errors()[0].FieldPath)
	assert.Equal(t, "address.city", ctx.Errors()[1].FieldPath)
	assert.Equal(t, "id: bad value; address.city: bad value", ctx.CombinedMessage())
}
