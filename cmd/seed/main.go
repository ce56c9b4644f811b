package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medvoice/realtime-gateway/internal/db"
	"github.com/medvoice/realtime-gateway/internal/scheduling"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, doctorIDs, 120); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specializations := []string{
		"General Dentist",
		"Orthodontics",
		"Prosthodontics",
		"Endodontics",
		"Oral Surgeon",
		"Pediatric Dentist",
		"Periodontics",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]

		availability, err := json.Marshal(randomAvailability())
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialization, availability, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, spec, availability)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// randomAvailability gives each doctor two to four working days with one or
// two windows per day, on hour boundaries between 08:00 and 18:00.
func randomAvailability() []scheduling.DaySchedule {
	days := gofakeit.Number(2, 4)
	used := make(map[int]bool)

	var schedule []scheduling.DaySchedule
	for len(schedule) < days {
		day := gofakeit.Number(0, 6)
		if used[day] {
			continue
		}
		used[day] = true

		var windows []scheduling.TimeWindow
		start := gofakeit.Number(8, 10) * 60
		end := gofakeit.Number(12, 14) * 60
		windows = append(windows, scheduling.TimeWindow{Start: start, End: end})
		if gofakeit.Bool() {
			windows = append(windows, scheduling.TimeWindow{
				Start: end + 60,
				End:   gofakeit.Number(16, 18) * 60,
			})
		}
		schedule = append(schedule, scheduling.DaySchedule{DayOfWeek: day, Windows: windows})
	}
	return schedule
}

// seedAppointments books random half-hour visits through the same
// conditional insert the gateway uses, so the seeded data always satisfies
// the overlap invariant; conflicting picks are simply skipped.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID, count int) error {
	log.Printf("seeding up to %d appointments", count)

	store := scheduling.NewPgStore(pool)
	resolver := scheduling.NewResolver(store, scheduling.NewLocalLocker())

	booked := 0
	for i := 0; i < count; i++ {
		doctorID := doctorIDs[gofakeit.Number(0, len(doctorIDs)-1)]
		doctor, err := store.FindDoctorByID(ctx, doctorID)
		if err != nil {
			return err
		}

		date := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, gofakeit.Number(1, 21))
		declared := doctor.WindowsOn(date)
		if len(declared) == 0 {
			continue
		}

		slot := declared[gofakeit.Number(0, len(declared)-1)]
		start := slot.Start + gofakeit.Number(0, (slot.End-slot.Start-30)/30)*30
		window := scheduling.TimeWindow{Start: start, End: start + 30}

		patient := scheduling.Patient{
			Name:  gofakeit.Name(),
			Email: gofakeit.Email(),
			Phone: gofakeit.Phone(),
		}
		if _, err := resolver.Book(ctx, scheduling.BookingRequest{
			DoctorID: doctorID,
			Patient:  patient,
			Date:     date,
			Window:   window,
			Reason:   gofakeit.Sentence(),
		}); err != nil {
			continue
		}
		booked++
	}

	log.Printf("booked %d appointments", booked)
	return nil
}
