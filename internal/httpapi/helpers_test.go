package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"sync"
	"testing"

	"github.com/John-Robertt/chefboot-go/internal/bootscript"
	"github.com/John-Robertt/chefboot-go/internal/credential"
	"github.com/John-Robertt/chefboot-go/internal/endpoint"
	"github.com/John-Robertt/chefboot-go/internal/resolve"
	"github.com/John-Robertt/chefboot-go/internal/statement"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func newTestSynth(t *testing.T, groups map[string]string) *bootscript.Synthesizer {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	u, err := endpoint.Parse("https://chef.example.com")
	if err != nil {
		t.Fatalf("endpoint.Parse: %v", err)
	}
	raw := make(map[string]json.RawMessage, len(groups))
	for k, v := range groups {
		raw[k] = json.RawMessage(v)
	}
	return &bootscript.Synthesizer{
		Resolver:  resolve.NewStatic(raw),
		Endpoint:  endpoint.NewHolder(u),
		Validator: &credential.ValidatorIdentity{Name: "validator1", Key: testKey},
		Install: statement.NewRaw(
			"curl -L https://omnitruck.chef.io/install.sh | bash",
			"powershell -Command \"iwr -useb https://omnitruck.chef.io/install.ps1 | iex; install\"",
		),
	}
}

type synthFunc func(ctx context.Context, group string) (statement.List, error)

func (f synthFunc) Synthesize(ctx context.Context, group string) (statement.List, error) {
	return f(ctx, group)
}
