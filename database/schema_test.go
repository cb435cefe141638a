package database

import (
	"context"
	"testing"
)

func TestEnsureIndexSchemaRejectsInvalidDimension(t *testing.T) {
	if err := EnsureIndexSchema(context.Background(), nil, 0); err == nil {
		t.Fatal("expected error when dimension is not positive")
	}
	if err := EnsureIndexSchema(context.Background(), nil, -1); err == nil {
		t.Fatal("expected error for negative dimension")
	}
}
