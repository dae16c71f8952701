package mail

import (
	"errors"
	netmail "net/mail"
	"strings"
	"testing"
)

func TestSMTPSender_BuildAddresses(t *testing.T) {
	s := NewSMTPSender(Config{Host: "localhost", Port: 1025, From: "Equipe GoBarber <noreply@gobarber.com>"})

	tests := []struct {
		name    string
		to      string
		wantErr bool
	}{
		{"plain name", "Diego <diego@example.com>", false},
		{"quoted comma name", (&netmail.Address{Name: "Silva, João", Address: "joao@example.com"}).String(), false},
		{"bare address", "diego@example.com", false},
		{"unquoted comma name", "Silva, João <joao@example.com>", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := s.build(Message{To: tt.to, Subject: "Agendamento cancelado"}, "<p>ok</p>")

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Fatalf("expected ErrInvalidAddress, got %v", err)
				}
				if !IsMessageError(err) {
					t.Fatalf("expected a message error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			to := m.GetHeader("To")
			if len(to) != 1 || !strings.Contains(to[0], "@example.com") {
				t.Fatalf("unexpected To header %v", to)
			}
			if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "Agendamento cancelado" {
				t.Fatalf("unexpected subject header %v", got)
			}
		})
	}
}

func TestSMTPSender_BadFromAddress(t *testing.T) {
	s := NewSMTPSender(Config{From: "not an address"})

	_, err := s.build(Message{To: "diego@example.com"}, "")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}
