package main

import (
	"database/sql"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-mess/internal/obs"
)

type student struct {
	RegNum string
	Name   string
	Branch string
	Year   int
}

var students = []student{
	{"21BCE1001", "Aarav Sharma", "CSE", 3},
	{"21BCE1002", "Diya Patel", "CSE", 3},
	{"21BEC1003", "Kabir Singh", "ECE", 3},
	{"22BME1004", "Meera Iyer", "MECH", 2},
	{"22BCE1005", "Rohan Gupta", "CSE", 2},
	{"22BEE1006", "Sneha Reddy", "EEE", 2},
	{"23BCE1007", "Vikram Nair", "CSE", 1},
	{"23BCV1008", "Ananya Das", "CIVIL", 1},
	{"23BEC1009", "Arjun Menon", "ECE", 1},
	{"24BCE1010", "Ishita Joshi", "CSE", 1},
}

func main() {
	month := flag.String("month", time.Now().UTC().Format("2006-01"), "month to seed attendance for (YYYY-MM)")
	flag.Parse()

	logger := obs.NewLogger("console", "info")

	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, relying on environment variables")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	start, err := time.Parse("2006-01", *month)
	if err != nil {
		logger.Fatal().Err(err).Str("month", *month).Msg("month must be formatted as YYYY-MM")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	ids := seedStudents(db, logger)
	seedAttendance(db, logger, ids, start)

	logger.Info().Str("month", *month).Msg("seeding completed")
}

func seedStudents(db *sql.DB, logger zerolog.Logger) map[string]string {
	ids := make(map[string]string, len(students))
	for _, s := range students {
		var id string
		err := db.QueryRow(`
			INSERT INTO students (reg_num, name, branch, year)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (reg_num) DO UPDATE SET name = EXCLUDED.name, branch = EXCLUDED.branch, year = EXCLUDED.year
			RETURNING id;
		`, s.RegNum, s.Name, s.Branch, s.Year).Scan(&id)
		if err != nil {
			logger.Error().Err(err).Str("reg_num", s.RegNum).Msg("seed student")
			continue
		}
		ids[s.RegNum] = id
	}
	logger.Info().Int("students", len(ids)).Msg("students seeded")
	return ids
}

// seedAttendance writes a deterministic pattern so repeated runs produce the same bills:
// every seventh day is an absence and every third day a non-veg meal.
func seedAttendance(db *sql.DB, logger zerolog.Logger, ids map[string]string, start time.Time) {
	end := start.AddDate(0, 1, 0)
	rows := 0
	for i, s := range students {
		id, ok := ids[s.RegNum]
		if !ok {
			continue
		}
		for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
			n := day.Day() + i
			present := n%7 != 0
			meal := "Veg"
			if n%3 == 0 {
				meal = "Non-Veg"
			}
			_, err := db.Exec(`
				INSERT INTO attendance (student_id, date, is_present, meal_type)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (student_id, date) DO UPDATE
				SET is_present = EXCLUDED.is_present, meal_type = EXCLUDED.meal_type, updated_at = NOW();
			`, id, day.Format("2006-01-02"), present, meal)
			if err != nil {
				logger.Error().Err(err).Str("reg_num", s.RegNum).Str("date", day.Format("2006-01-02")).Msg("seed attendance")
				continue
			}
			rows++
		}
	}
	logger.Info().Int("rows", rows).Msg("attendance seeded")
}
