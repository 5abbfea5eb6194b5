// seed_users crea un usuario de la suite con password bcrypt y, opcionalmente, sus access codes.
//
// Uso: go run ./cmd/seed_users <username> <password> <role> [codigo...]
// La clínica se toma de SEED_CLINIC_ID; si no está definida se genera una nueva.
// Requiere la migración 001_auth.sql aplicada.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/clinica-suite/internal/application/auth"
	"github.com/jhoicas/clinica-suite/internal/domain"
	"github.com/jhoicas/clinica-suite/internal/domain/entity"
	"github.com/jhoicas/clinica-suite/internal/infrastructure/postgres"
	"github.com/jhoicas/clinica-suite/pkg/config"
	"github.com/jhoicas/clinica-suite/pkg/rbac"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "uso: seed_users <username> <password> <role> [codigo...]")
		os.Exit(2)
	}
	username := auth.NormalizeUsername(os.Args[1])
	password := os.Args[2]
	role := os.Args[3]
	codes := slices.Compact(slices.Sorted(slices.Values(os.Args[4:])))

	if !rbac.KnownRole(role) {
		fmt.Fprintf(os.Stderr, "Rol desconocido %q (válidos: %v)\n", role, rbac.Roles())
		os.Exit(2)
	}
	for _, c := range codes {
		if !entity.ValidAccessCode(c) {
			fmt.Fprintf(os.Stderr, "Código de acceso inválido: %q\n", c)
			os.Exit(2)
		}
	}

	clinicID := os.Getenv("SEED_CLINIC_ID")
	if clinicID == "" {
		clinicID = uuid.NewString()
	} else if _, err := uuid.Parse(clinicID); err != nil {
		fmt.Fprintf(os.Stderr, "SEED_CLINIC_ID inválido: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conectar a PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hash de password: %v\n", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	user := &entity.User{
		ID:           uuid.NewString(),
		ClinicID:     clinicID,
		Username:     username,
		FullName:     os.Getenv("SEED_FULL_NAME"),
		PasswordHash: string(hash),
		Role:         role,
		Status:       entity.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := postgres.NewUserRepository(pool).Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			fmt.Fprintf(os.Stderr, "El usuario %q ya existe\n", username)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Crear usuario: %v\n", err)
		os.Exit(1)
	}
	if len(codes) > 0 {
		if err := postgres.NewAccessCodeRepository(pool).Replace(ctx, user.ID, codes); err != nil {
			fmt.Fprintf(os.Stderr, "Guardar access codes: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Usuario %s (%s) creado: id=%s clinic=%s, %d access codes\n",
		username, role, user.ID, clinicID, len(codes))
}
