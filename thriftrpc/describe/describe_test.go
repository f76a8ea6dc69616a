// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package describe

import (
	"bytes"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Query-farm/thriftrpc/thriftrpc/compile"
	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

const treeSchema = `
namespace go tree

enum Color { RED = 1, BLUE = 2 }

struct Node {
  1: required i32 value
  2: list<Node> children
  3: optional Node next
  4: map<string, double> weights
  5: Color color
  6: binary blob
}

exception Missing { 1: string message }

service Base {
  void ping()
}

service Tree extends Base {
  Node lookup(1: i32 id, 2: set<string> tags) throws (1: Missing missing)
  oneway void touch(1: i32 id)
}
`

var treeModule = compile.MustLoadSource("tree.thrift", []byte(treeSchema))

func metaValue(f arrow.Field, key string) string {
	i := f.Metadata.FindKey(key)
	if i < 0 {
		return ""
	}
	return f.Metadata.Values()[i]
}

var _ = Describe("Schema", func() {
	It("maps each field to a nullable column", func() {
		s := Schema(treeModule.Struct("Node"))
		Expect(s.NumFields()).To(Equal(6))

		value := s.Field(0)
		Expect(value.Name).To(Equal("value"))
		Expect(value.Nullable).To(BeTrue())
		Expect(arrow.TypeEqual(value.Type, arrow.PrimitiveTypes.Int32)).To(BeTrue())
		Expect(metaValue(value, MetaFieldID)).To(Equal("1"))
		Expect(metaValue(value, MetaFieldType)).To(Equal("i32"))

		weights := s.Field(3)
		Expect(arrow.TypeEqual(weights.Type, arrow.MapOf(arrow.BinaryTypes.String, arrow.PrimitiveTypes.Float64))).To(BeTrue())
		Expect(arrow.TypeEqual(s.Field(4).Type, arrow.PrimitiveTypes.Int32)).To(BeTrue())
		Expect(metaValue(s.Field(4), MetaFieldType)).To(Equal("tree.Color"))
		Expect(arrow.TypeEqual(s.Field(5).Type, arrow.BinaryTypes.Binary)).To(BeTrue())
		Expect(metaValue(s.Field(5), MetaEncoding)).To(BeEmpty())
	})

	It("encodes self-references as binary", func() {
		s := Schema(treeModule.Struct("Node"))
		children := s.Field(1)
		Expect(arrow.TypeEqual(children.Type, arrow.ListOf(arrow.BinaryTypes.Binary))).To(BeTrue())
		Expect(metaValue(children, MetaEncoding)).To(Equal(EncodingBinary))
		next := s.Field(2)
		Expect(arrow.TypeEqual(next.Type, arrow.BinaryTypes.Binary)).To(BeTrue())
		Expect(metaValue(next, MetaEncoding)).To(Equal(EncodingBinary))
	})

	It("nests structs that are not on the path", func() {
		lookup := treeModule.Service("Tree").Method("lookup")
		result := Schema(lookup.Result)
		success := result.Field(0)
		Expect(success.Name).To(Equal("success"))
		st, ok := success.Type.(*arrow.StructType)
		Expect(ok).To(BeTrue())
		Expect(st.NumFields()).To(Equal(6))
		Expect(arrow.TypeEqual(st.Field(2).Type, arrow.BinaryTypes.Binary)).To(BeTrue())
	})

	It("names types the way the schema language spells them", func() {
		Expect(TypeName(nil)).To(Equal("void"))
		Expect(TypeName(ttype.ListOf(ttype.Simple(ttype.I64)))).To(Equal("list<i64>"))
		Expect(TypeName(ttype.MapOf(ttype.Simple(ttype.STRING), ttype.BinaryType()))).To(Equal("map<string,binary>"))
		Expect(arrow.TypeEqual(ArrowType(ttype.SetOf(ttype.Simple(ttype.BOOL))), arrow.ListOf(arrow.FixedWidthTypes.Boolean))).To(BeTrue())
	})
})

var _ = Describe("Records", func() {
	node := func(v int32) *ttype.Struct {
		return ttype.New(treeModule.Struct("Node")).Set("value", v)
	}

	It("converts values to columns with nulls for unset fields", func() {
		child := node(2)
		root := node(1).
			Set("children", []any{child}).
			Set("weights", ttype.Map{{Key: "a", Value: 0.5}}).
			Set("blob", []byte{0xca, 0xfe})

		batch, err := Records(nil, treeModule.Struct("Node"), []*ttype.Struct{root, node(3)})
		Expect(err).ToNot(HaveOccurred())
		defer batch.Release()

		Expect(batch.NumRows()).To(Equal(int64(2)))
		values := batch.Column(0).(*array.Int32)
		Expect(values.Int32Values()).To(Equal([]int32{1, 3}))
		Expect(batch.Column(2).IsNull(0)).To(BeTrue())
		Expect(batch.Column(1).IsNull(1)).To(BeTrue())
		Expect(batch.Column(5).(*array.Binary).Value(0)).To(Equal([]byte{0xca, 0xfe}))

		children := batch.Column(1).(*array.List)
		encoded := children.ListValues().(*array.Binary).Value(0)
		decoded, err := protocol.ReadStruct(protocol.NewBinary(transport.NewMemoryBufferWith(encoded), nil), treeModule.Struct("Node"))
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded.Get("value")).To(Equal(int32(2)))
	})

	It("rejects rows of another type", func() {
		other := ttype.New(treeModule.Struct("Missing"))
		_, err := Records(nil, treeModule.Struct("Node"), []*ttype.Struct{other})
		Expect(err).To(MatchError(ContainSubstring("row 0")))

		bad := node(1).Set("weights", "nope")
		_, err = Records(nil, treeModule.Struct("Node"), []*ttype.Struct{bad})
		Expect(err).To(MatchError(ContainSubstring("weights")))
	})

	It("writes an IPC stream", func() {
		var buf bytes.Buffer
		Expect(WriteRecords(&buf, treeModule.Struct("Node"), []*ttype.Struct{node(7)})).To(Succeed())

		r, err := ipc.NewReader(&buf)
		Expect(err).ToNot(HaveOccurred())
		defer r.Release()
		Expect(r.Next()).To(BeTrue())
		Expect(r.RecordBatch().Column(0).(*array.Int32).Value(0)).To(Equal(int32(7)))
	})
})

var _ = Describe("Services", func() {
	It("round-trips the describe stream", func() {
		var buf bytes.Buffer
		Expect(WriteServices(&buf, []*ttype.ServiceDescriptor{treeModule.Service("Tree")}, "srv-9")).To(Succeed())

		methods, meta, err := ReadServices(&buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(meta).To(HaveKeyWithValue(MetaServerID, "srv-9"))
		Expect(meta).To(HaveKeyWithValue(MetaDescribeVersion, DescribeVersion))
		Expect(methods).To(HaveLen(3))

		ping := methods[0]
		Expect(ping.Name).To(Equal("ping"))
		Expect(ping.Service).To(Equal("tree.Tree"))
		Expect(ping.HasReturn).To(BeFalse())
		Expect(ping.ReturnType).To(Equal("void"))
		Expect(ping.ParamTypes).To(BeNil())

		lookup := methods[1]
		Expect(lookup.ReturnType).To(Equal("tree.Node"))
		Expect(lookup.ParamTypes).To(Equal(map[string]string{"id": "i32", "tags": "set<string>"}))
		Expect(lookup.Throws).To(Equal(map[string]string{"missing": "tree.Missing"}))
		Expect(lookup.ParamsSchema.NumFields()).To(Equal(2))
		Expect(lookup.ResultSchema.Field(1).Name).To(Equal("missing"))

		Expect(methods[2].Oneway).To(BeTrue())
	})

	It("omits the server id when empty", func() {
		batch := BuildBatch([]*ttype.ServiceDescriptor{treeModule.Service("Base")}, "")
		defer batch.Release()
		md := batch.(arrow.RecordBatchWithMetadata).Metadata()
		Expect(md.FindKey(MetaServerID)).To(Equal(-1))
		Expect(batch.NumRows()).To(Equal(int64(1)))
	})
})
