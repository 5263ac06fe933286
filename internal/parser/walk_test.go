package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-qt/ritual-sub000/internal/db"
)

func parseOne(t *testing.T, source string) *db.Database {
	t.Helper()
	database := &db.Database{CrateName: "fixture"}
	drv := NewDriver()
	cfg := &Config{}
	err := drv.Run(context.Background(), cfg, map[string][]byte{"fixture.h": []byte(source)}, database, 0)
	require.NoError(t, err)
	return database
}

func findFunction(items []db.Item, name string) (*db.SourceFunction, bool) {
	for _, it := range items {
		if it.Payload.Kind == db.ItemFunction && it.Payload.Function.Path.Last().Name == name {
			return it.Payload.Function, true
		}
	}
	return nil, false
}

func TestWalkFreeFunction(t *testing.T) {
	database := parseOne(t, "int add(int a, int b);\n")

	fn, ok := findFunction(database.Items(), "add")
	require.True(t, ok, "expected to find a parsed \"add\" function")
	assert.Nil(t, fn.Member)
	require.Len(t, fn.Arguments, 2)
	assert.Equal(t, "a", fn.Arguments[0].Name)
	assert.Equal(t, "b", fn.Arguments[1].Name)
}

func TestWalkClassWithConstructorAndDestructor(t *testing.T) {
	source := `
class Widget {
public:
    Widget();
    ~Widget();
    int width() const;
private:
    int m_width;
};
`
	database := parseOne(t, source)
	items := database.Items()

	var sawClass bool
	for _, it := range items {
		if it.Payload.Kind == db.ItemType && it.Payload.Class != nil && it.Payload.Class.Path.Last().Name == "Widget" {
			sawClass = true
		}
	}
	assert.True(t, sawClass, "expected Widget to be recorded as a class item")

	ctor, ok := findFunction(items, "Widget")
	require.True(t, ok)
	require.NotNil(t, ctor.Member)
	assert.Equal(t, db.MemberConstructor, ctor.Member.Kind)

	dtor, ok := findFunction(items, "~Widget")
	require.True(t, ok)
	require.NotNil(t, dtor.Member)
	assert.Equal(t, db.MemberDestructor, dtor.Member.Kind)

	width, ok := findFunction(items, "width")
	require.True(t, ok)
	require.NotNil(t, width.Member)
	assert.True(t, width.Member.IsConst)

	for _, it := range items {
		if it.Payload.Kind == db.ItemField {
			t.Fatalf("private field m_width must not be recorded, got %+v", it.Payload.Field)
		}
	}
}

func TestWalkEnumWithBitwiseOrValue(t *testing.T) {
	source := `
enum Flag {
    Good = 1,
    Bad = 2,
    Questionable = Good | Bad
};
`
	database := parseOne(t, source)

	var enum *db.SourceEnum
	for _, it := range database.Items() {
		if it.Payload.Kind == db.ItemType && it.Payload.Enum != nil {
			enum = it.Payload.Enum
		}
	}
	require.NotNil(t, enum, "expected Flag enum to be recorded")
	require.Len(t, enum.Variants, 3)
	assert.Equal(t, int64(1), enum.Variants[0].Value)
	assert.Equal(t, int64(2), enum.Variants[1].Value)
	assert.Equal(t, int64(3), enum.Variants[2].Value, "Questionable = Good | Bad should evaluate to 3")
}

func TestWalkOverloadedMethodsBothRecorded(t *testing.T) {
	source := `
class Point {
public:
    void set(int x);
    void set(int x, int y);
};
`
	database := parseOne(t, source)

	var setCount int
	for _, it := range database.Items() {
		if it.Payload.Kind == db.ItemFunction && it.Payload.Function.Path.Last().Name == "set" {
			setCount++
		}
	}
	assert.Equal(t, 2, setCount, "both overloads of set() must be recorded as distinct items")
}
