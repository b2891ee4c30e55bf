package perf

import (
	"sort"
	"testing"
	"time"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/requests"
	"github.com/clinica-central/helpdesk/internal/session"
	"github.com/clinica-central/helpdesk/internal/shared"
)

var benchPrincipal = shared.Principal{UserID: 42, Email: "ana@clinica.com", Role: shared.RoleCompanyAdministrator}

// Every authenticated call verifies the session token, so it must stay cheap.
func TestSessionVerifyLatencyTarget(t *testing.T) {
	codec := session.NewCodec("perf-secret", 7*24*time.Hour)
	token, err := codec.Issue(benchPrincipal)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	samples := make([]time.Duration, 0, 200)
	for i := 0; i < cap(samples); i++ {
		start := time.Now()
		if _, err := codec.Verify(token); err != nil {
			t.Fatalf("verify token: %v", err)
		}
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 20*time.Millisecond {
		t.Fatalf("session verify regression: p95=%s", p95)
	}
}

func BenchmarkSessionVerify(b *testing.B) {
	codec := session.NewCodec("perf-secret", 7*24*time.Hour)
	token, err := codec.Issue(benchPrincipal)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Verify(token); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNextCode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = requests.NextCode("MT", "MT-1041", 0)
	}
}

func BenchmarkScopeAllows(b *testing.B) {
	actor := authz.Actor{UserID: 42, Role: shared.RoleCompanyAdministrator}
	for id := int64(1); id <= 20; id++ {
		actor.Memberships = append(actor.Memberships, authz.Membership{CompanyID: id, IsAdmin: id%2 == 0})
	}
	scope := actor.Scope()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = scope.Allows(int64(i%25), 7)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
