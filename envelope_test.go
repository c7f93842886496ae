package envelope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cipherline/envelope-go/internal/crypto"
)

// genKeyPair provisions a key pair or fails the test.
func genKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	kp, err := GenerateIdentityKeyPair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeyPair() error = %v", err)
	}
	return kp
}

func TestEncrypt_Decrypt_RoundTrip_AllRecipients(t *testing.T) {
	alice := genKeyPair(t)
	bob := genKeyPair(t)
	carol := genKeyPair(t)

	recipients := map[string][]byte{
		"alice": alice.PublicKeyPEM,
		"bob":   bob.PublicKeyPEM,
		"carol": carol.PublicKeyPEM,
	}
	privKeys := map[string][]byte{
		"alice": alice.PrivateKeyPEM,
		"bob":   bob.PrivateKeyPEM,
		"carol": carol.PrivateKeyPEM,
	}

	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("hello")},
		{"block aligned", make([]byte, 48)},
		{"binary", []byte{0x00, 0xff, 0x10, 0x80}},
		{"large", bytes.Repeat([]byte("payload"), 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Encrypt(tt.payload, recipients)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			if len(env.Keys) != len(recipients) {
				t.Errorf("key map size = %d, want %d", len(env.Keys), len(recipients))
			}

			// Every recipient independently recovers the identical plaintext.
			for identity, priv := range privKeys {
				got, err := Decrypt(env, identity, priv)
				if err != nil {
					t.Fatalf("Decrypt(%q) error = %v", identity, err)
				}
				if !bytes.Equal(got, tt.payload) {
					t.Errorf("Decrypt(%q) = %v, want %v", identity, got, tt.payload)
				}
			}
		})
	}
}

func TestEncrypt_Scenario_TwoRecipientsAndOutsider(t *testing.T) {
	alice := genKeyPair(t)
	bob := genKeyPair(t)
	carol := genKeyPair(t) // not a recipient

	env, err := Encrypt([]byte("hello"), map[string][]byte{
		"alice": alice.PublicKeyPEM,
		"bob":   bob.PublicKeyPEM,
	})
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	for identity, priv := range map[string][]byte{"alice": alice.PrivateKeyPEM, "bob": bob.PrivateKeyPEM} {
		got, err := Decrypt(env, identity, priv)
		if err != nil {
			t.Fatalf("Decrypt(%q) error = %v", identity, err)
		}
		if string(got) != "hello" {
			t.Errorf("Decrypt(%q) = %q, want %q", identity, got, "hello")
		}
	}

	_, err = Decrypt(env, "carol", carol.PrivateKeyPEM)
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied for outsider, got %v", err)
	}

	var denied *AccessDeniedError
	if !errors.As(err, &denied) || denied.Identity != "carol" {
		t.Errorf("expected AccessDeniedError naming carol, got %#v", err)
	}
}

func TestEncrypt_AtomicFanOut(t *testing.T) {
	alice := genKeyPair(t)
	bob := genKeyPair(t)

	tests := []struct {
		name     string
		badKey   []byte
		identity string
	}{
		{"missing key", nil, "carol"},
		{"empty key", []byte{}, "carol"},
		{"garbage key", []byte("not a pem key"), "carol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Encrypt([]byte("x"), map[string][]byte{
				"alice":     alice.PublicKeyPEM,
				"bob":       bob.PublicKeyPEM,
				tt.identity: tt.badKey,
			})
			if env != nil {
				t.Fatal("expected no envelope when a recipient key is unusable")
			}
			if !errors.Is(err, ErrMissingRecipientKey) {
				t.Fatalf("expected ErrMissingRecipientKey, got %v", err)
			}

			var missing *MissingRecipientKeyError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingRecipientKeyError, got %#v", err)
			}
			if missing.Identity != tt.identity {
				t.Errorf("error names %q, want %q", missing.Identity, tt.identity)
			}
		})
	}
}

func TestEncrypt_NoRecipients(t *testing.T) {
	_, err := Encrypt([]byte("x"), nil)
	if !errors.Is(err, ErrNoRecipients) {
		t.Errorf("expected ErrNoRecipients, got %v", err)
	}
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	alice := genKeyPair(t)
	recipients := map[string][]byte{"alice": alice.PublicKeyPEM}
	payload := []byte("identical payload")

	env1, err := Encrypt(payload, recipients)
	if err != nil {
		t.Fatal(err)
	}
	env2, err := Encrypt(payload, recipients)
	if err != nil {
		t.Fatal(err)
	}

	if bytes.Equal(env1.Ciphertext, env2.Ciphertext) {
		t.Error("two encryptions of the same payload produced identical ciphertexts")
	}
	if bytes.Equal(env1.IV, env2.IV) {
		t.Error("two encryptions produced identical IVs")
	}
	if bytes.Equal(env1.Keys["alice"], env2.Keys["alice"]) {
		t.Error("two encryptions produced identical wrapped keys")
	}
}

func TestEncrypt_WrappedKeyLengthConstant(t *testing.T) {
	alice := genKeyPair(t)
	recipients := map[string][]byte{"alice": alice.PublicKeyPEM}

	for i := 0; i < 5; i++ {
		env, err := Encrypt([]byte("payload"), recipients)
		if err != nil {
			t.Fatal(err)
		}
		if len(env.Keys["alice"]) != crypto.WrappedKeySize {
			t.Fatalf("wrapped key length = %d, want %d", len(env.Keys["alice"]), crypto.WrappedKeySize)
		}
	}
}

func TestDecrypt_TamperSensitivity(t *testing.T) {
	alice := genKeyPair(t)
	payload := []byte("original message body, long enough to span several cipher blocks")

	env, err := Encrypt(payload, map[string][]byte{"alice": alice.PublicKeyPEM})
	if err != nil {
		t.Fatal(err)
	}

	tamper := func(t *testing.T, mutate func(*Envelope)) {
		t.Helper()
		clone := &Envelope{
			Ciphertext: append([]byte(nil), env.Ciphertext...),
			IV:         append([]byte(nil), env.IV...),
			Keys:       KeyMap{"alice": append([]byte(nil), env.Keys["alice"]...)},
		}
		mutate(clone)

		got, err := Decrypt(clone, "alice", alice.PrivateKeyPEM)
		if err == nil && bytes.Equal(got, payload) {
			t.Fatal("tampered envelope silently decrypted to the original plaintext")
		}
		if err != nil && !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("expected ErrDecryptionFailed, got %v", err)
		}
	}

	t.Run("ciphertext bit", func(t *testing.T) {
		tamper(t, func(e *Envelope) { e.Ciphertext[len(e.Ciphertext)-1] ^= 0x01 })
	})
	t.Run("iv bit", func(t *testing.T) {
		// An IV flip garbles the first block; with a multi-block payload the
		// padding still validates, so the failure must show as wrong bytes,
		// never as the original plaintext.
		tamper(t, func(e *Envelope) { e.IV[0] ^= 0x01 })
	})
	t.Run("key map bit", func(t *testing.T) {
		tamper(t, func(e *Envelope) { e.Keys["alice"][10] ^= 0x01 })
	})
	t.Run("truncated ciphertext", func(t *testing.T) {
		tamper(t, func(e *Envelope) { e.Ciphertext = e.Ciphertext[:len(e.Ciphertext)-1] })
	})
}

func TestDecrypt_WrongPrivateKey(t *testing.T) {
	alice := genKeyPair(t)
	mallory := genKeyPair(t)

	env, err := Encrypt([]byte("secret"), map[string][]byte{"alice": alice.PublicKeyPEM})
	if err != nil {
		t.Fatal(err)
	}

	// Right identity, wrong key: coarse failure, never a wrong plaintext.
	got, err := Decrypt(env, "alice", mallory.PrivateKeyPEM)
	if err == nil {
		t.Fatalf("decrypt with wrong key succeeded, got %q", got)
	}
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecrypt_InvalidEnvelope(t *testing.T) {
	alice := genKeyPair(t)

	tests := []struct {
		name string
		env  *Envelope
	}{
		{"nil", nil},
		{"empty ciphertext", &Envelope{IV: make([]byte, 16), Keys: KeyMap{"alice": {1}}}},
		{"bad iv length", &Envelope{Ciphertext: []byte{1}, IV: make([]byte, 8), Keys: KeyMap{"alice": {1}}}},
		{"empty key map", &Envelope{Ciphertext: []byte{1}, IV: make([]byte, 16), Keys: KeyMap{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.env, "alice", alice.PrivateKeyPEM)
			if !errors.Is(err, ErrInvalidEnvelope) {
				t.Errorf("expected ErrInvalidEnvelope, got %v", err)
			}
		})
	}
}

func TestEnvelope_JSONRoundTrip(t *testing.T) {
	alice := genKeyPair(t)
	bob := genKeyPair(t)

	env, err := Encrypt([]byte("persisted message"), map[string][]byte{
		"alice": alice.PublicKeyPEM,
		"bob":   bob.PublicKeyPEM,
	})
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	// The wire form must be all base64 strings and a JSON object key map.
	var wire struct {
		Ciphertext string            `json:"ciphertext"`
		IV         string            `json:"iv"`
		Keys       map[string]string `json:"keys"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("wire form is not base64 strings: %v", err)
	}
	if len(wire.Keys) != 2 {
		t.Errorf("wire key map size = %d, want 2", len(wire.Keys))
	}

	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	got, err := Decrypt(&decoded, "bob", bob.PrivateKeyPEM)
	if err != nil {
		t.Fatalf("Decrypt() after JSON round trip error = %v", err)
	}
	if string(got) != "persisted message" {
		t.Errorf("payload after JSON round trip = %q", got)
	}
}

func TestKeyMap_UnmarshalJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an object", `[1, 2]`},
		{"bad base64 value", `{"alice": "%%%"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m KeyMap
			err := json.Unmarshal([]byte(tt.data), &m)
			if !errors.Is(err, ErrInvalidEnvelope) {
				t.Errorf("expected ErrInvalidEnvelope, got %v", err)
			}
		})
	}
}

func TestKeyMap_Recipients(t *testing.T) {
	m := KeyMap{"carol": {1}, "alice": {2}, "bob": {3}}
	got := m.Recipients()
	want := []string{"alice", "bob", "carol"}
	if len(got) != len(want) {
		t.Fatalf("Recipients() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Recipients() = %v, want %v", got, want)
		}
	}
}

func TestResolveRecipients(t *testing.T) {
	alice := genKeyPair(t)
	dir := StaticDirectory{"alice": alice.PublicKeyPEM}

	keys, err := ResolveRecipients(context.Background(), dir, []string{"alice"})
	if err != nil {
		t.Fatalf("ResolveRecipients() error = %v", err)
	}
	if !bytes.Equal(keys["alice"], alice.PublicKeyPEM) {
		t.Error("resolved key does not match directory entry")
	}

	_, err = ResolveRecipients(context.Background(), dir, []string{"alice", "ghost"})
	if !errors.Is(err, ErrMissingRecipientKey) {
		t.Fatalf("expected ErrMissingRecipientKey, got %v", err)
	}
	var missing *MissingRecipientKeyError
	if !errors.As(err, &missing) || missing.Identity != "ghost" {
		t.Errorf("expected error naming ghost, got %#v", err)
	}
}
