package smap

import "testing"

const sampleSMAP = `SMAP
MainKt.class
Kotlin
*S Kotlin
*F
+ 1 Main.kt
Main.kt
*L
10#1,5:100
*E
`

func TestParseAndFindSourcePosition(t *testing.T) {
	s, err := Parse(sampleSMAP)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s == nil {
		t.Fatal("Parse returned nil SMAP for a Kotlin stratum")
	}

	pos, ok := s.FindSourcePosition(102)
	if !ok {
		t.Fatal("FindSourcePosition(102): expected a match")
	}
	if pos.File != "Main.kt" || pos.Path != "Main.kt" || pos.Line != 12 {
		t.Fatalf("FindSourcePosition(102) = %+v, want Main.kt:12", pos)
	}

	if _, ok := s.FindSourcePosition(105); ok {
		t.Fatal("FindSourcePosition(105): expected no match, range is [100,105)")
	}

	dest := s.FindDestLines("Main.kt", 10)
	if len(dest) != 1 || dest[0] != 100 {
		t.Fatalf("FindDestLines(Main.kt, 10) = %v, want [100]", dest)
	}
}

const inlineSMAP = `SMAP
Caller.kt
Kotlin
*S Kotlin
*F
+ 1 Caller.kt
Caller.kt
+ 2 Inline.kt
Inline.kt
*L
1#1,5:1
10#2,3:6
*E
`

func TestInlineStackVirtualization(t *testing.T) {
	s, err := Parse(inlineSMAP)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	pos, ok := s.FindSourcePosition(7)
	if !ok {
		t.Fatal("FindSourcePosition(7): expected a match")
	}
	if pos.File != "Inline.kt" || pos.Line != 11 {
		t.Fatalf("FindSourcePosition(7) = %+v, want Inline.kt:11", pos)
	}

	if !s.ContainsDest(7) {
		t.Fatal("ContainsDest(7) should be true")
	}
	if s.ContainsDest(0) {
		t.Fatal("ContainsDest(0) should be false")
	}

	ranges := s.InlinedPositionsAt(7)
	if len(ranges) != 1 {
		t.Fatalf("InlinedPositionsAt(7) = %v, want exactly one containing range", ranges)
	}
	if ranges[0].Position.File != "Inline.kt" || ranges[0].Position.Line != 11 {
		t.Fatalf("InlinedPositionsAt(7)[0] = %+v, want Inline.kt:11", ranges[0].Position)
	}
}

func TestKotlinDebugPreferredOverKotlin(t *testing.T) {
	src := `SMAP
Main.kt
Kotlin
*S Kotlin
*F
+ 1 Wrong.kt
Wrong.kt
*L
1,10:1
*S KotlinDebug
*F
+ 1 Right.kt
Right.kt
*L
1,10:1
*E
`
	s, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	pos, ok := s.FindSourcePosition(1)
	if !ok || pos.File != "Right.kt" {
		t.Fatalf("expected KotlinDebug stratum to win, got %+v ok=%v", pos, ok)
	}
}

func TestParseWithoutKotlinStratumYieldsNil(t *testing.T) {
	src := `SMAP
Main.kt
JSR45
*S JSR45
*F
+ 1 Other.kt
Other.kt
*L
1,10:1
*E
`
	s, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s != nil {
		t.Fatalf("expected nil SMAP when no Kotlin/KotlinDebug stratum is present, got %+v", s)
	}
}

func TestCacheMemoizesParse(t *testing.T) {
	c := NewCache()
	s1, err := c.Get("MainKt", sampleSMAP)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	s2, err := c.Get("MainKt", sampleSMAP)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s1 != s2 {
		t.Fatal("Get should return the same cached *SMAP on repeat lookups")
	}

	noExt, err := c.Get("PlainKt", "")
	if err != nil || noExt != nil {
		t.Fatalf("Get with empty debug extension should yield (nil, nil), got (%v, %v)", noExt, err)
	}

	c.Invalidate("MainKt")
	s3, err := c.Get("MainKt", sampleSMAP)
	if err != nil {
		t.Fatalf("Get after Invalidate: %v", err)
	}
	if s3 == s1 {
		t.Fatal("Get after Invalidate should re-parse, not reuse the stale pointer")
	}
}
