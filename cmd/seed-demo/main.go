package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/classwork-backend/internal/config"
	"github.com/stemsi/classwork-backend/internal/database"
	"github.com/stemsi/classwork-backend/internal/logger"
	"github.com/stemsi/classwork-backend/internal/model"
	"github.com/stemsi/classwork-backend/internal/repository"
	"github.com/stemsi/classwork-backend/internal/service"
)

// Seeds one teacher, one classroom with 50 students, and a published quiz
// assignment with an answer key. Safe to re-run: existing rows are reused.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	teacherRepo := repository.NewTeacherRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	teacherService := service.NewTeacherService(teacherRepo)

	fmt.Println("=== Seeding Demo Data ===")

	// ─── Teacher ───────────────────────────────────────────────────────
	teacher, err := teacherService.GetByEmail(ctx, "guru@classwork.local")
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Fatal().Err(err).Msg("Failed to check existing teacher")
		}
		teacher = &model.Teacher{
			Email:        "guru@classwork.local",
			Name:         "Pak Guru",
			PasswordHash: "gurujaya",
		}
		if err := teacherService.Create(ctx, teacher); err != nil {
			log.Fatal().Err(err).Msg("Failed to create teacher")
		}
		fmt.Printf("Created teacher with ID: %d\n", teacher.ID)
	} else {
		fmt.Printf("Found existing teacher with ID: %d\n", teacher.ID)
	}

	// ─── Classroom ─────────────────────────────────────────────────────
	var classroomID uuid.UUID
	err = pool.QueryRow(ctx,
		`SELECT id FROM classrooms WHERE teacher_id = $1 AND name = $2`,
		teacher.ID, "XII TKJ 2",
	).Scan(&classroomID)
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Fatal().Err(err).Msg("Failed to check existing classroom")
		}
		err = pool.QueryRow(ctx,
			`INSERT INTO classrooms (teacher_id, name) VALUES ($1, $2) RETURNING id`,
			teacher.ID, "XII TKJ 2",
		).Scan(&classroomID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create classroom")
		}
		fmt.Printf("Created classroom XII TKJ 2 (%s)\n", classroomID)
	} else {
		fmt.Printf("Found existing classroom (%s)\n", classroomID)
	}

	// ─── Students ──────────────────────────────────────────────────────
	names := []string{
		"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
		"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
		"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
		"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
		"Rafi Ahmad", "Siska Saraswati", "Toni Setiawan", "Umi Kalsum", "Vina Panduwinata",
		"Wahyu Hidayat", "Xena Maharani", "Yudi Pratama", "Zaki Anwar", "Alifia Zahra",
		"Bagas Saputra", "Citra Kirana", "Dimas Anggara", "Elisa Novita", "Fikri Maulana",
		"Gali Rakasiwi", "Hani Hanifah", "Iqbal Ramadhan", "Jasmine Azzahra", "Kevin Sanjaya",
		"Larasati Dewi", "Miko Pambudi", "Nia Ramadhani", "Oscar Lawalata", "Puput Melati",
		"Reza Rahadian", "Sari Nila", "Tigor Siahaan", "Utari Maharani", "Vicky Prasetyo",
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("stemsijaya"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash seed password")
	}

	successCount := 0
	for i, name := range names {
		email := fmt.Sprintf("siswa%d@classwork.local", i+1)

		student, err := studentRepo.GetByEmail(ctx, email)
		if err != nil {
			if err != pgx.ErrNoRows {
				fmt.Printf("Error checking student %s: %v\n", email, err)
				continue
			}
			student = &model.Student{Email: email, Name: name}
			err = pool.QueryRow(ctx,
				`INSERT INTO students (email, name, password_hash) VALUES ($1, $2, $3) RETURNING id`,
				student.Email, student.Name, string(hashed),
			).Scan(&student.ID)
			if err != nil {
				fmt.Printf("Error creating student %s (%s): %v\n", name, email, err)
				continue
			}
		}

		_, err = pool.Exec(ctx,
			`INSERT INTO classroom_members (classroom_id, student_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			classroomID, student.ID,
		)
		if err != nil {
			fmt.Printf("Error enrolling student %s: %v\n", email, err)
			continue
		}

		successCount++
		if (i+1)%10 == 0 {
			fmt.Printf("Seeded %d students...\n", i+1)
		}
	}
	fmt.Printf("Enrolled %d/%d students.\n", successCount, len(names))

	// ─── Assignment ────────────────────────────────────────────────────
	var assignmentID uuid.UUID
	err = pool.QueryRow(ctx,
		`SELECT id FROM assignments WHERE teacher_id = $1 AND title = $2`,
		teacher.ID, "Ulangan Harian Jaringan Dasar",
	).Scan(&assignmentID)
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Fatal().Err(err).Msg("Failed to check existing assignment")
		}
		err = pool.QueryRow(ctx,
			`INSERT INTO assignments
			   (teacher_id, title, type, open_at, due_date, time_limit_minutes, max_attempts, anti_cheat)
			 VALUES ($1, $2, 'QUIZ', now(), now() + interval '7 days', 45, 2,
			         '{"show_correct": "afterSubmit", "enforce_fullscreen": true, "block_copy_paste": true}')
			 RETURNING id`,
			teacher.ID, "Ulangan Harian Jaringan Dasar",
		).Scan(&assignmentID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create assignment")
		}

		_, err = pool.Exec(ctx,
			`INSERT INTO assignment_classrooms (assignment_id, classroom_id) VALUES ($1, $2)`,
			assignmentID, classroomID,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to link assignment to classroom")
		}

		seedQuestions(ctx, log, pool, assignmentID)
		fmt.Printf("Created assignment (%s)\n", assignmentID)
	} else {
		fmt.Printf("Found existing assignment (%s)\n", assignmentID)
	}

	fmt.Println("\nSeed completed!")
}

func seedQuestions(ctx context.Context, log zerolog.Logger, pool *pgxpool.Pool, assignmentID uuid.UUID) {
	type option struct {
		label   string
		correct bool
	}
	questions := []struct {
		prompt  string
		options []option
	}{
		{
			prompt: "Perangkat yang meneruskan paket antar jaringan adalah?",
			options: []option{
				{"Switch", false}, {"Router", true}, {"Hub", false}, {"Repeater", false},
			},
		},
		{
			prompt: "Protokol untuk menerjemahkan nama domain menjadi alamat IP adalah?",
			options: []option{
				{"DHCP", false}, {"DNS", true}, {"FTP", false}, {"SMTP", false},
			},
		},
		{
			prompt: "Alamat IP versi 4 terdiri dari berapa bit?",
			options: []option{
				{"16", false}, {"32", true}, {"64", false}, {"128", false},
			},
		},
		{
			prompt: "Topologi jaringan yang menghubungkan semua node ke satu titik pusat adalah?",
			options: []option{
				{"Bus", false}, {"Ring", false}, {"Star", true}, {"Mesh", false},
			},
		},
		{
			prompt: "Port default untuk HTTPS adalah?",
			options: []option{
				{"80", false}, {"21", false}, {"443", true}, {"25", false},
			},
		},
	}

	for qi, q := range questions {
		var questionID uuid.UUID
		err := pool.QueryRow(ctx,
			`INSERT INTO questions (assignment_id, position, prompt)
			 VALUES ($1, $2, $3) RETURNING id`,
			assignmentID, qi+1, q.prompt,
		).Scan(&questionID)
		if err != nil {
			log.Fatal().Err(err).Int("position", qi+1).Msg("Failed to create question")
		}

		for oi, o := range q.options {
			_, err := pool.Exec(ctx,
				`INSERT INTO question_options (question_id, position, label, is_correct)
				 VALUES ($1, $2, $3, $4)`,
				questionID, oi+1, o.label, o.correct,
			)
			if err != nil {
				log.Fatal().Err(err).Int("position", oi+1).Msg("Failed to create option")
			}
		}
	}
}
