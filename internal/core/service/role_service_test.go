package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/marketledger/marketledger/internal/core/domain"
	"github.com/marketledger/marketledger/internal/ledger"
)

func TestRoleService_Register(t *testing.T) {
	l := ledger.New(zerolog.Nop())
	svc := NewRoleService(l, zerolog.Nop())
	ctx := context.Background()

	if err := svc.Register(ctx, "0xa", domain.RoleProducer); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if !svc.Has(ctx, "0xa", domain.RoleProducer) {
		t.Fatal("grant not visible after Register")
	}
	if svc.Has(ctx, "0xa", domain.RoleBuyer) {
		t.Fatal("Has reports a tag that was never granted")
	}
	if svc.Has(ctx, "0xb", domain.RoleProducer) {
		t.Fatal("Has reports a grant for the wrong account")
	}
}

func TestRoleService_Register_Duplicate(t *testing.T) {
	l := ledger.New(zerolog.Nop())
	svc := NewRoleService(l, zerolog.Nop())
	ctx := context.Background()

	if err := svc.Register(ctx, "0xa", domain.RoleShipper); err != nil {
		t.Fatal(err)
	}
	err := svc.Register(ctx, "0xa", domain.RoleShipper)
	if !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
	// the failed repeat must not add a second notification
	if notes := l.NotificationsAfter(0); len(notes) != 1 {
		t.Fatalf("notification count = %d, want 1", len(notes))
	}
}

func TestRoleService_MultipleRolesPerAccount(t *testing.T) {
	l := ledger.New(zerolog.Nop())
	svc := NewRoleService(l, zerolog.Nop())
	ctx := context.Background()

	for _, tag := range domain.AllRoleTags() {
		if err := svc.Register(ctx, "0xa", tag); err != nil {
			t.Fatalf("register %s: %v", tag, err)
		}
	}

	got := svc.RolesOf(ctx, "0xa")
	want := domain.AllRoleTags()
	if len(got) != len(want) {
		t.Fatalf("RolesOf = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("RolesOf[%d] = %s, want %s (grant order)", i, got[i], want[i])
		}
	}
}

func TestRoleService_RolesOf_Unknown(t *testing.T) {
	svc := NewRoleService(ledger.New(zerolog.Nop()), zerolog.Nop())

	if got := svc.RolesOf(context.Background(), "0xnever"); len(got) != 0 {
		t.Fatalf("RolesOf for unknown account = %v", got)
	}
}
