// seed_applicants.go posts randomly generated loan applicants to the Kredit API.
//
// Usage:
//
//	go run scripts/seed_applicants.go -n 20 -api http://localhost:8700
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"time"
)

type applicant struct {
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes"`
}

var (
	firstNames  = []string{"Ani", "Budi", "Citra", "Dedi", "Eka", "Fajar", "Gita", "Hadi", "Indah", "Joko", "Kartika", "Lukman"}
	lastNames   = []string{"Santoso", "Wijaya", "Lestari", "Pratama", "Saputra", "Hidayat", "Nugroho", "Rahayu"}
	jobs        = []string{"PNS", "Karyawan", "Wiraswasta", "Petani", "Mahasiswa"}
	collaterals = []string{"Sertifikat", "BPKB Mobil", "BPKB Motor", "-"}
)

func randomApplicant(r *rand.Rand) applicant {
	return applicant{
		Name: firstNames[r.Intn(len(firstNames))] + " " + lastNames[r.Intn(len(lastNames))],
		Attributes: map[string]interface{}{
			"age":        1 + r.Intn(4),
			"income":     (1 + r.Intn(15)) * 1000000,
			"job":        jobs[r.Intn(len(jobs))],
			"collateral": collaterals[r.Intn(len(collaterals))],
		},
	}
}

func main() {
	apiURL := flag.String("api", "http://localhost:8700", "Kredit API base URL")
	count := flag.Int("n", 10, "number of applicants to create")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	dryRun := flag.Bool("dry-run", false, "print applicants without posting")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	r := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: 10 * time.Second}

	created := 0
	for i := 0; i < *count; i++ {
		a := randomApplicant(r)
		body, _ := json.Marshal(a)
		if *dryRun {
			fmt.Println(string(body))
			continue
		}

		resp, err := client.Post(*apiURL+"/api/v1/applicants", "application/json", bytes.NewReader(body))
		if err != nil {
			logger.Error("post applicant", "name", a.Name, "error", err)
			os.Exit(1)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			logger.Warn("applicant rejected", "name", a.Name, "status", resp.StatusCode)
			continue
		}
		created++
	}
	logger.Info("seeding complete", "created", created, "requested", *count)
}
