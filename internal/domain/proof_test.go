package domain

import "testing"

func TestContextID_SeparatorInIDs(t *testing.T) {
	a := PublicContext{VerifierID: "shop|eu", Domain: "example.org"}
	b := PublicContext{VerifierID: "shop", Domain: "eu|example.org"}
	if a.ContextID() == b.ContextID() {
		t.Fatalf("expected distinct contexts to have distinct ids, both were %q", a.ContextID())
	}
	withNonce := a
	withNonce.Nonce = "n-2"
	if a.ContextID() != withNonce.ContextID() {
		t.Fatalf("expected nonce to be excluded from the context id")
	}
	if (PublicContext{VerifierID: "", Domain: "1:x|y"}).ContextID() == (PublicContext{VerifierID: "x", Domain: "y"}).ContextID() {
		t.Fatalf("expected length prefix to keep ids apart")
	}
}
