package value

import "testing"

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Int(0), false},
		{Int(1), true},
		{Float(0), false},
		{Float(0.5), true},
		{Bool(false), false},
		{Bool(true), true},
		{Str(""), false},
		{Str("x"), true},
		{Null(), false},
		{List_(true, &List{}), false},
		{List_(true, &List{Elements: []Value{Int(1)}}), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%+v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestDerefFollowsOneLevel(t *testing.T) {
	cell := Int(7)
	ref := RefTo(&cell)
	if got := ref.Deref(); got.Tag != INT || got.I != 7 {
		t.Errorf("Deref() = %+v, want Int(7)", got)
	}
	if got := Int(7).Deref(); got.Tag != INT || got.I != 7 {
		t.Errorf("Deref() on a non-REF should return itself unchanged, got %+v", got)
	}
}

func TestEqualDereferencesBothSides(t *testing.T) {
	cell := Int(5)
	ref := RefTo(&cell)
	if !Equal(ref, Int(5)) {
		t.Error("Equal should transparently deref a REF on either side")
	}
	if Equal(Int(5), Str("5")) {
		t.Error("values of different tags should never be equal")
	}
}

func TestEqualLists(t *testing.T) {
	a := List_(true, &List{Elements: []Value{Int(1), Int(2)}})
	b := List_(true, &List{Elements: []Value{Int(1), Int(2)}})
	c := List_(true, &List{Elements: []Value{Int(1), Int(3)}})
	if !Equal(a, b) {
		t.Error("lists with equal elements should be equal")
	}
	if Equal(a, c) {
		t.Error("lists with differing elements should not be equal")
	}
}

func TestLessNumericAndString(t *testing.T) {
	if !Less(Int(1), Int(2)) {
		t.Error("1 < 2 should be true")
	}
	if Less(Int(2), Int(1)) {
		t.Error("2 < 1 should be false")
	}
	if !Less(Str("a"), Str("b")) {
		t.Error(`"a" < "b" should be true`)
	}
}

func TestLessBoolIsAlwaysFalse(t *testing.T) {
	if Less(Bool(false), Bool(true)) || Less(Bool(true), Bool(false)) {
		t.Error("Less between bools should always be false")
	}
}

func TestGreaterIsLessReversed(t *testing.T) {
	if !Greater(Int(2), Int(1)) {
		t.Error("2 > 1 should be true")
	}
	if Greater(Bool(true), Bool(false)) {
		t.Error("Greater between bools should always be false, matching Less")
	}
}

func TestCopyStringInternsIntoCache(t *testing.T) {
	cache := NewStringCache()
	v := Str(cache.Insert("hi"))
	if cache.RefCount("hi") != 1 {
		t.Fatalf("RefCount(hi) = %d, want 1", cache.RefCount("hi"))
	}
	cp := Copy(cache, v)
	if cache.RefCount("hi") != 2 {
		t.Errorf("Copy of a string should bump the cache refcount, RefCount(hi) = %d, want 2", cache.RefCount("hi"))
	}
	if cp.S != "hi" {
		t.Errorf("copy value = %q, want hi", cp.S)
	}
}

func TestCopyListIsDeep(t *testing.T) {
	cache := NewStringCache()
	inner := List_(true, &List{Elements: []Value{Str(cache.Insert("a"))}})
	outer := List_(true, &List{Elements: []Value{inner}})

	cp := Copy(cache, outer)
	cp.L.Elements[0].L.Elements[0] = Str("mutated")
	if outer.L.Elements[0].L.Elements[0].S != "a" {
		t.Error("Copy should deep-clone nested lists, mutating the copy must not affect the original")
	}
}

func TestDestroyReleasesStringsAndNestedLists(t *testing.T) {
	cache := NewStringCache()
	a := cache.Insert("a")
	b := cache.Insert("b")
	list := List_(true, &List{Elements: []Value{Str(a), Str(b)}})

	Destroy(cache, list)
	if cache.Len() != 0 {
		t.Errorf("after destroying every reference, the cache should be empty, Len() = %d", cache.Len())
	}
}

func TestDestroyListRefDoesNotOwnElements(t *testing.T) {
	cache := NewStringCache()
	s := cache.Insert("shared")
	backing := &List{Elements: []Value{Str(s)}}
	alias := List_(false, backing)

	Destroy(cache, alias)
	if cache.RefCount("shared") != 1 {
		t.Errorf("destroying a LIST_REF must not release elements it doesn't own, RefCount(shared) = %d, want 1", cache.RefCount("shared"))
	}
}

func TestStringCacheConcatDoesNotConsumeOperands(t *testing.T) {
	cache := NewStringCache()
	a := cache.Insert("foo")
	b := cache.Insert("bar")
	joined := cache.Concat(a, b)
	if joined != "foobar" {
		t.Fatalf("Concat = %q, want foobar", joined)
	}
	if cache.RefCount("foo") != 1 || cache.RefCount("bar") != 1 {
		t.Error("Concat should not decrement either operand's refcount")
	}
	if cache.RefCount("foobar") != 1 {
		t.Error("Concat should insert the joined string into the cache")
	}
}

func TestReprFormatsEachTag(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Int(5), "5"},
		{Float(1.5), "1.5"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Null(), "null"},
		{Str("hi"), "hi"},
		{List_(true, &List{Elements: []Value{Int(1), Int(2)}}), "[1, 2]"},
	}
	for _, c := range cases {
		if got := c.v.Repr(); got != c.want {
			t.Errorf("Repr(%+v) = %q, want %q", c.v, got, c.want)
		}
	}
}
