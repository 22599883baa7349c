package staking

import "testing"

const (
	testSigner = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	testMember = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
)

const testFixtures = `
signer: 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY
chains:
  paseo:
    token: PAS
    decimals: 10
    pools:
      - id: 2
        state: Open
        points: "20000000000"
        member_count: 1
        roles:
          depositor: 5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty
          root: 5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty
      - id: 1
        state: Open
        points: "50000000000"
        member_count: 2
        roles:
          depositor: 5FLSigC9HGRKVhB9FiEo4Y3koPsNmBmLJbpXg2mp1hXcS59Y
      - id: 3
        state: Destroying
        points: "0"
        member_count: 0
        roles:
          depositor: 5DAAnrj7VHTznn2AWBemMuyBwZWs6FNFjdyVXUeYum3PTXFy
    members:
      - account: 5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty
        pool_id: 2
        bonded: "20000000000"
        pending_rewards: "1500000000"
  kusama:
    token: KSM
`

func newTestBackend(t *testing.T) *MemoryBackend {
	t.Helper()
	fixtures, err := ParseFixtures([]byte(testFixtures))
	if err != nil {
		t.Fatalf("parse fixtures: %v", err)
	}
	backend, err := NewMemoryBackend(fixtures)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	return backend
}

func newBackendAs(t *testing.T, signer string) *MemoryBackend {
	t.Helper()
	fixtures, err := ParseFixtures([]byte(testFixtures))
	if err != nil {
		t.Fatalf("parse fixtures: %v", err)
	}
	fixtures.Signer = signer
	backend, err := NewMemoryBackend(fixtures)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	return backend
}
