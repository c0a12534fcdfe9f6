package ir_test

import (
	"strings"
	"testing"

	"pcb/internal/ir"
	"pcb/internal/testkit"
)

func TestDumpFooMain(t *testing.T) {
	c := ir.NewContext(false)
	if err := testkit.BuildFooMain(c); err != nil {
		t.Fatal(err)
	}
	if got := c.String(); got != testkit.FooMainDump {
		t.Fatalf("dump mismatch:\n--- got ---\n%s--- want ---\n%s", got, testkit.FooMainDump)
	}
	if err := testkit.CheckInvariants(c); err != nil {
		t.Fatal(err)
	}
}

func TestDumpArith(t *testing.T) {
	c := ir.NewContext(false)
	if err := testkit.BuildArith(c); err != nil {
		t.Fatal(err)
	}
	if got := c.String(); got != testkit.ArithDump {
		t.Fatalf("dump mismatch:\n--- got ---\n%s--- want ---\n%s", got, testkit.ArithDump)
	}
}

func TestDumpIsStable(t *testing.T) {
	c := ir.NewContext(false)
	if err := testkit.BuildArith(c); err != nil {
		t.Fatal(err)
	}
	first := c.String()
	for range 3 {
		if c.String() != first {
			t.Fatalf("dump changed between calls")
		}
	}
}

func TestDumpOpenBlockAndCompare(t *testing.T) {
	c := ir.NewContext(false)
	i16 := mustInt(t, c, 16)
	boolT, _ := c.BoolType()
	fn := mustFunc(t, c, "cmp", boolT, i16)
	b := mustBlock(t, fn)
	p, _ := fn.Argument(0)
	k := mustConst(t, b, i16, 65535)
	if _, err := b.BuildLte(p, k); err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"define cmp(i16) -> bool {",
		"bb0:",
		"  %1: i16 = 65535",
		"  %2: bool = lte %0 %1",
		"}",
		"",
	}, "\n")
	var sb strings.Builder
	if err := fn.Dump(&sb); err != nil {
		t.Fatal(err)
	}
	if sb.String() != want {
		t.Fatalf("dump mismatch:\n%s", sb.String())
	}
}
