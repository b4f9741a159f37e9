package main

import (
	"bytes"
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"migrate": false, "create-admin": false, "expire-packs": false, "rollup": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("command %s not registered", name)
		}
	}
}

func TestRollupRejectsBadDay(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"rollup", "--day", "01/05/2024"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected an error for a malformed day")
	}
}
