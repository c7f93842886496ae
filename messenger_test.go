package envelope_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	envelope "github.com/cipherline/envelope-go"
	"github.com/cipherline/envelope-go/internal/blob"
	"github.com/cipherline/envelope-go/internal/store"
)

// newMessenger wires a Messenger over a per-test in-memory sqlite store and
// a temporary blob directory.
func newMessenger(t *testing.T, opts ...envelope.MessengerOption) *envelope.Messenger {
	t.Helper()

	db, err := store.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	blobs, err := blob.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("opening blob store: %v", err)
	}

	opts = append(opts, envelope.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return envelope.NewMessenger(store.New(db), blobs, opts...)
}

func register(t *testing.T, m *envelope.Messenger, identity string) *envelope.KeyPair {
	t.Helper()
	kp, err := m.RegisterIdentity(context.Background(), identity)
	if err != nil {
		t.Fatalf("RegisterIdentity(%q) error = %v", identity, err)
	}
	return kp
}

func TestMessenger_SendAndRead(t *testing.T) {
	m := newMessenger(t)
	ctx := context.Background()

	alice := register(t, m, "alice")
	bob := register(t, m, "bob")
	carol := register(t, m, "carol")

	conv, err := m.CreateConversation(ctx, "alice", []string{"bob"}, "")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	msg, err := m.SendMessage(ctx, conv.ID, "alice", []byte("hello bob"))
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	// Both participants, sender included, can read the message back.
	for identity, kp := range map[string]*envelope.KeyPair{"alice": alice, "bob": bob} {
		got, err := m.ReadMessage(ctx, msg.ID, identity, kp.PrivateKeyPEM)
		if err != nil {
			t.Fatalf("ReadMessage(%q) error = %v", identity, err)
		}
		if string(got) != "hello bob" {
			t.Errorf("ReadMessage(%q) = %q", identity, got)
		}
	}

	// A registered identity outside the conversation is denied.
	_, err = m.ReadMessage(ctx, msg.ID, "carol", carol.PrivateKeyPEM)
	if !errors.Is(err, envelope.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied for outsider, got %v", err)
	}
}

func TestMessenger_CreateConversation_UnregisteredParticipant(t *testing.T) {
	m := newMessenger(t)
	ctx := context.Background()

	register(t, m, "alice")

	_, err := m.CreateConversation(ctx, "alice", []string{"ghost"}, "")
	if !errors.Is(err, envelope.ErrMissingRecipientKey) {
		t.Fatalf("expected ErrMissingRecipientKey, got %v", err)
	}
	var missing *envelope.MissingRecipientKeyError
	if !errors.As(err, &missing) || missing.Identity != "ghost" {
		t.Errorf("expected error naming ghost, got %#v", err)
	}
}

func TestMessenger_DirectConversationDedupe(t *testing.T) {
	m := newMessenger(t)
	ctx := context.Background()

	register(t, m, "alice")
	register(t, m, "bob")
	register(t, m, "carol")

	first, err := m.CreateConversation(ctx, "alice", []string{"bob"}, "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.CreateConversation(ctx, "bob", []string{"alice"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("direct conversation was duplicated: %q vs %q", first.ID, second.ID)
	}

	// Groups are never deduplicated against the direct conversation.
	group, err := m.CreateConversation(ctx, "alice", []string{"bob", "carol"}, "team")
	if err != nil {
		t.Fatal(err)
	}
	if group.ID == first.ID {
		t.Error("group conversation collided with the direct one")
	}
	if !group.IsGroup || group.Name != "team" {
		t.Errorf("group = %+v", group)
	}
}

func TestMessenger_GroupFanOut(t *testing.T) {
	m := newMessenger(t)
	ctx := context.Background()

	keys := map[string]*envelope.KeyPair{}
	for _, id := range []string{"alice", "bob", "carol"} {
		keys[id] = register(t, m, id)
	}

	conv, err := m.CreateConversation(ctx, "alice", []string{"bob", "carol"}, "team")
	if err != nil {
		t.Fatal(err)
	}

	msg, err := m.SendMessage(ctx, conv.ID, "carol", []byte("group update"))
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Envelope.Keys) != 3 {
		t.Errorf("envelope key map size = %d, want 3", len(msg.Envelope.Keys))
	}

	for id, kp := range keys {
		got, err := m.ReadMessage(ctx, msg.ID, id, kp.PrivateKeyPEM)
		if err != nil {
			t.Fatalf("ReadMessage(%q) error = %v", id, err)
		}
		if string(got) != "group update" {
			t.Errorf("ReadMessage(%q) = %q", id, got)
		}
	}
}

func TestMessenger_Messages(t *testing.T) {
	m := newMessenger(t)
	ctx := context.Background()

	register(t, m, "alice")
	bob := register(t, m, "bob")

	conv, err := m.CreateConversation(ctx, "alice", []string{"bob"}, "")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := m.SendMessage(ctx, conv.ID, "alice", []byte(fmt.Sprintf("message %d", i))); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := m.Messages(ctx, conv.ID, "bob", 2)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Messages() count = %d, want 2", len(msgs))
	}

	// The newest two, in chronological order.
	got, err := envelope.Decrypt(msgs[1].Envelope, "bob", bob.PrivateKeyPEM)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "message 2" {
		t.Errorf("last message = %q, want %q", got, "message 2")
	}

	// Non-participants cannot list the conversation.
	register(t, m, "carol")
	if _, err := m.Messages(ctx, conv.ID, "carol", 0); !errors.Is(err, envelope.ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound for outsider, got %v", err)
	}
}

func TestMessenger_Attachments(t *testing.T) {
	m := newMessenger(t)
	ctx := context.Background()

	alice := register(t, m, "alice")
	bob := register(t, m, "bob")
	carol := register(t, m, "carol")

	conv, err := m.CreateConversation(ctx, "alice", []string{"bob"}, "")
	if err != nil {
		t.Fatal(err)
	}
	msg, err := m.SendMessage(ctx, conv.ID, "alice", []byte("see attached"))
	if err != nil {
		t.Fatal(err)
	}

	data := bytes.Repeat([]byte{0x42, 0x00, 0xff}, 1000)
	att, err := m.AttachFile(ctx, msg.ID, "alice", "data.bin", "application/octet-stream", data)
	if err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}
	if att.FileName != "data.bin" || att.Size != int64(len(data)) {
		t.Errorf("attachment = %+v", att)
	}

	for identity, kp := range map[string]*envelope.KeyPair{"alice": alice, "bob": bob} {
		got, err := m.OpenAttachment(ctx, att.ID, identity, kp.PrivateKeyPEM)
		if err != nil {
			t.Fatalf("OpenAttachment(%q) error = %v", identity, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("OpenAttachment(%q) did not return the original bytes", identity)
		}
	}

	_, err = m.OpenAttachment(ctx, att.ID, "carol", carol.PrivateKeyPEM)
	if !errors.Is(err, envelope.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied for outsider, got %v", err)
	}
}

func TestMessenger_AttachFile_TooLarge(t *testing.T) {
	m := newMessenger(t, envelope.WithAttachmentCodec(
		envelope.NewAttachmentCodec(envelope.WithMaxPayloadSize(64)),
	))
	ctx := context.Background()

	register(t, m, "alice")
	register(t, m, "bob")

	conv, err := m.CreateConversation(ctx, "alice", []string{"bob"}, "")
	if err != nil {
		t.Fatal(err)
	}
	msg, err := m.SendMessage(ctx, conv.ID, "alice", []byte("see attached"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.AttachFile(ctx, msg.ID, "alice", "big.bin", "application/octet-stream", make([]byte, 65))
	if !errors.Is(err, envelope.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestMessenger_DeleteConversation(t *testing.T) {
	m := newMessenger(t)
	ctx := context.Background()

	register(t, m, "alice")
	register(t, m, "bob")

	conv, err := m.CreateConversation(ctx, "alice", []string{"bob"}, "")
	if err != nil {
		t.Fatal(err)
	}
	msg, err := m.SendMessage(ctx, conv.ID, "alice", []byte("to be deleted"))
	if err != nil {
		t.Fatal(err)
	}
	att, err := m.AttachFile(ctx, msg.ID, "alice", "f.bin", "application/octet-stream", []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}

	// Only participants may delete.
	register(t, m, "carol")
	if err := m.DeleteConversation(ctx, conv.ID, "carol"); !errors.Is(err, envelope.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound for outsider, got %v", err)
	}

	if err := m.DeleteConversation(ctx, conv.ID, "alice"); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}

	convs, err := m.Conversations(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 0 {
		t.Errorf("conversation survived delete: %v", convs)
	}

	if _, err := m.ReadMessage(ctx, msg.ID, "alice", nil); !errors.Is(err, envelope.ErrMessageNotFound) {
		t.Errorf("message survived delete: %v", err)
	}
	if _, err := m.OpenAttachment(ctx, att.ID, "alice", nil); !errors.Is(err, envelope.ErrAttachmentNotFound) {
		t.Errorf("attachment survived delete: %v", err)
	}
}

func TestMessenger_RegisterIdentity_Empty(t *testing.T) {
	m := newMessenger(t)
	if _, err := m.RegisterIdentity(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty identity")
	}
}
