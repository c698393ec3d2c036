package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReassignGrants(t *testing.T) {
	grants := []AccessGrant{
		{Address: "asker", Permissions: []MarkerAccess{MarkerAccessAdmin}},
		{Address: "auditor", Permissions: []MarkerAccess{MarkerAccessBurn}},
	}
	got := ReassignGrants(grants, "asker", "bidder")
	want := []AccessGrant{
		{Address: "bidder", Permissions: []MarkerAccess{MarkerAccessAdmin}},
		{Address: "auditor", Permissions: []MarkerAccess{MarkerAccessBurn}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReassignGrants (-want +got):\n%s", diff)
	}
	if grants[0].Address != "asker" {
		t.Error("ReassignGrants must not mutate its input")
	}
}

func TestReleaseMarker(t *testing.T) {
	got := ReleaseMarker("denom", "contract", []AccessGrant{{Address: "asker", Permissions: []MarkerAccess{MarkerAccessAdmin}}})
	want := Transfers{
		MarkerGrantAccess{Denom: "denom", Address: "asker", Permissions: []MarkerAccess{MarkerAccessAdmin}},
		MarkerRevokeAccess{Denom: "denom", Address: "contract"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReleaseMarker (-want +got):\n%s", diff)
	}
}

func TestTransfers_JSON(t *testing.T) {
	in := Transfers{
		BankSend{ToAddress: "asker", Amount: Coins{{"quote_1", 100}}},
		MarkerWithdraw{Denom: "d", Amount: Coin{"d", 5}, Recipient: "bidder"},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"bank_send":{"to_address":"asker","amount":[{"denom":"quote_1","amount":100}]}},` +
		`{"marker_withdraw":{"denom":"d","amount":{"denom":"d","amount":5},"recipient":"bidder"}}]`
	if string(data) != want {
		t.Errorf("Marshal = %s\nwant %s", data, want)
	}
	var out Transfers
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("decoded transfers differ (-want +got):\n%s", diff)
	}
}
