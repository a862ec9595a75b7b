// Command halpd is a process-wiring example: it constructs every
// long-lived component of the credential system (vault, commitment
// parameters, nullifier registry, challenge store, SNARK proving/verifying
// keys) and drives one full issue -> authenticate -> verify cycle end to
// end. It stands in for the HTTP/RPC transport layer that a real deployment
// would put in front of pkg/orchestrator and pkg/challenge.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/rs/zerolog"

	"github.com/halp-system/zkcore/circuits/halpauth"
	"github.com/halp-system/zkcore/pkg/challenge"
	"github.com/halp-system/zkcore/pkg/commitment"
	"github.com/halp-system/zkcore/pkg/field"
	"github.com/halp-system/zkcore/pkg/orchestrator"
	"github.com/halp-system/zkcore/pkg/params"
	"github.com/halp-system/zkcore/pkg/registry"
	"github.com/halp-system/zkcore/pkg/setup"
	"github.com/halp-system/zkcore/pkg/vault"
)

const (
	holder       = "demo-holder"
	domain       = "example.com"
	credentialID = "demo-credential"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	log.Info().Msg("compiling halp-auth circuit (dev mode, not for production)")
	ccs, err := setup.CompileCircuit(&halpauth.Circuit{})
	if err != nil {
		log.Fatal().Err(err).Msg("compile circuit")
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		log.Fatal().Err(err).Msg("groth16 setup")
	}

	v := vault.New(vault.FixedKeySource([]byte("halpd-dev-material")), log)
	if _, err := v.Generate(holder); err != nil {
		log.Fatal().Err(err).Msg("generate master secret")
	}

	commitParams, err := params.Generate(4)
	if err != nil {
		log.Fatal().Err(err).Msg("generate commitment parameters")
	}

	ms, err := v.Get(holder)
	if err != nil {
		log.Fatal().Err(err).Msg("fetch master secret")
	}
	blindingFactor, err := field.RandomScalar()
	if err != nil {
		log.Fatal().Err(err).Msg("sample blinding factor")
	}
	if _, _, err := commitment.CreateCommitment(commitParams, ms, nil, blindingFactor); err != nil {
		log.Fatal().Err(err).Msg("create commitment")
	}

	reg := registry.New(halpauth.MaxTreeDepth, 4)
	store := challenge.NewStore(log)
	defer store.Close()

	orch := orchestrator.New(v, reg, ccs, pk, log)
	verifier := challenge.NewVerifier(ccs, vk, store, reg)

	chal, err := store.Issue(domain, reg.Root())
	if err != nil {
		log.Fatal().Err(err).Msg("issue challenge")
	}
	log.Info().Str("challengeId", chal.ID).Msg("challenge issued")

	cred := orchestrator.CredentialRecord{CredentialID: credentialID, BlindingFactor: blindingFactor}
	pkg, err := orch.Authenticate(context.Background(), holder, domain, cred, chal.Value, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("authenticate")
	}
	log.Info().Str("nullifier", pkg.Nullifier.Text(16)).Msg("hybrid auth package assembled")

	session, err := verifier.Verify(&challenge.VerifyRequest{ChallengeID: chal.ID, Domain: domain, Proof: &challenge.HybridProof{
		SnarkProof:     pkg.SnarkProof,
		Pseudonym:      pkg.Pseudonym,
		Nullifier:      pkg.Nullifier,
		CommitmentHash: pkg.CommitmentHash,
		RegistryRoot:   pkg.RegistryRoot,
		Challenge:      pkg.Challenge,
	}})
	if err != nil {
		log.Fatal().Err(err).Msg("verify")
	}

	fmt.Printf("verified session: domain=%s token=%s pseudonym=0x%x\n", session.Domain, session.SessionToken, session.Pseudonym)
}
