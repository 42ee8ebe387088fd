package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// Crash point bounds. Draws are uniform over [MIN_CRASH_POINT, MAX_CRASH_POINT]
// rounded to CRASH_POINT_PRECISION decimal places. These are the house edge
// parameters of the game.
const (
	MIN_CRASH_POINT       = 1.50
	MAX_CRASH_POINT       = 10.00
	CRASH_POINT_PRECISION = 2
)

// Draw is one crash point together with the inputs it was derived from.
type Draw struct {
	CrashPoint float64
	ServerSeed string
	ClientSeed string
	Commitment string
	Nonce      int
}

// Generator produces the crash point for the round with the given nonce.
type Generator interface {
	Generate(nonce int) Draw
}

// GeneratorFunc adapts a plain function to a Generator.
type GeneratorFunc func(nonce int) Draw

func (f GeneratorFunc) Generate(nonce int) Draw {
	return f(nonce)
}

// FixedGenerator always crashes at crashPoint.
func FixedGenerator(crashPoint float64) Generator {
	return GeneratorFunc(func(nonce int) Draw {
		return Draw{CrashPoint: crashPoint, Nonce: nonce}
	})
}

// FairGenerator draws a fresh server and client seed for every round and maps
// them to a crash point in [Min, Max].
type FairGenerator struct {
	Min float64
	Max float64
}

func NewFairGenerator(min, max float64) *FairGenerator {
	return &FairGenerator{Min: min, Max: max}
}

func (g *FairGenerator) Generate(nonce int) Draw {
	serverSeed := GenerateSeed()
	clientSeed := GenerateSeed() // In production, aggregate from player inputs
	return Draw{
		CrashPoint: HashToCrashPoint(serverSeed, clientSeed, nonce, g.Min, g.Max),
		ServerSeed: serverSeed,
		ClientSeed: clientSeed,
		Commitment: HashCommitment(serverSeed),
		Nonce:      nonce,
	}
}

// HashToCrashPoint derives a crash point using HMAC-SHA256 keyed with the
// server seed over "clientSeed:nonce". The top 52 bits of the digest give a
// uniform r in [0, 1) which is scaled into [min, max].
func HashToCrashPoint(serverSeed, clientSeed string, nonce int, min, max float64) float64 {
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(fmt.Sprintf("%s:%d", clientSeed, nonce)))
	sum := h.Sum(nil)

	bits := binary.BigEndian.Uint64(sum[:8]) >> 12
	r := float64(bits) / float64(uint64(1)<<52)

	return clampCrashPoint(roundTo(min+r*(max-min), CRASH_POINT_PRECISION), min, max)
}

func clampCrashPoint(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// GenerateSeed creates a cryptographically secure random seed
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment creates a SHA256 hash of the seed for commitment
func HashCommitment(seed string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyRound allows players to verify the fairness of a round once the
// server seed has been revealed.
func VerifyRound(serverSeed, clientSeed string, nonce int, min, max, claimed float64) bool {
	calculated := HashToCrashPoint(serverSeed, clientSeed, nonce, min, max)
	return math.Abs(calculated-claimed) < 0.005
}
