package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/noah-isme/storefront-api/internal/auth"
	"github.com/noah-isme/storefront-api/internal/common"
)

var seedNamespace = uuid.MustParse("7d0c8f0e-4c59-4b53-9a0c-5f4f3c1a2b10")

type product struct {
	Slug        string
	Name        string
	Picture     string
	Price       int64
	DiscountPct *int
	Promo       *int64
	Active      bool
}

type coupon struct {
	Code       string
	Name       string
	Kind       string
	AmountOff  *int64
	PercentOff *int
	UsageLimit *int
	ValidDays  int
}

func intp(v int) *int       { return &v }
func int64p(v int64) *int64 { return &v }

var products = []product{
	{"linen-shirt", "Linen Shirt", "https://images.unsplash.com/photo-1596755094514-f87e34085b2c?w=800", 5000, intp(10), nil, true},
	{"canvas-tote", "Canvas Tote", "https://images.unsplash.com/photo-1544816155-12df9643f363?w=800", 1299, nil, int64p(999), true},
	{"wool-beanie", "Wool Beanie", "https://images.unsplash.com/photo-1576871337632-b9aef4c17ab9?w=800", 1500, nil, nil, true},
	{"leather-belt", "Leather Belt", "https://images.unsplash.com/photo-1624222247344-550fb60583dc?w=800", 3499, intp(15), nil, true},
	{"rain-jacket", "Rain Jacket", "https://images.unsplash.com/photo-1591047139829-d91aecb6caea?w=800", 12900, intp(25), int64p(8900), true},
	{"cotton-socks", "Cotton Socks", "https://images.unsplash.com/photo-1586350977771-b3b0abd50c82?w=800", 700, nil, nil, true},
	{"retired-scarf", "Retired Scarf", "https://images.unsplash.com/photo-1520903920243-00d872a2d1c9?w=800", 2500, nil, nil, false},
}

var coupons = []coupon{
	{"WELCOME5", "Welcome five off", "amount_off", int64p(500), nil, nil, 365},
	{"TEN", "Ten percent off", "percent_off", nil, intp(10), nil, 365},
	{"FIRST100", "First hundred buyers", "percent_off", nil, intp(20), intp(100), 30},
	{"EXPIRED", "Expired promotion", "amount_off", int64p(1000), nil, nil, -1},
}

func main() {
	subject := flag.String("token-subject", "", "print a signed access token for this buyer id and exit")
	admin := flag.Bool("admin", false, "grant the admin role to the printed token")
	ttl := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed token")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	if *subject != "" {
		printToken(*subject, *admin, *ttl)
		return
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedProducts(db)
	seedCoupons(db, time.Now().UTC())
	log.Println("Seeding completed successfully!")
}

func seedProducts(db *sql.DB) {
	fmt.Println("Seeding Products...")
	for _, p := range products {
		id := uuid.NewSHA1(seedNamespace, []byte("product:"+p.Slug))
		_, err := db.Exec(`
			INSERT INTO products (id, name, picture_url, price, discount_percentage, promotional_price, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				picture_url = EXCLUDED.picture_url,
				price = EXCLUDED.price,
				discount_percentage = EXCLUDED.discount_percentage,
				promotional_price = EXCLUDED.promotional_price,
				active = EXCLUDED.active,
				updated_at = NOW();
		`, id, p.Name, p.Picture, p.Price, nullInt(p.DiscountPct), nullInt64(p.Promo), p.Active)
		if err != nil {
			log.Printf("Failed to upsert product %s: %v", p.Slug, err)
			continue
		}
		fmt.Printf("  %s  %s\n", id, p.Name)
	}
}

func seedCoupons(db *sql.DB, now time.Time) {
	fmt.Println("Seeding Coupons...")
	for _, c := range coupons {
		id := uuid.NewSHA1(seedNamespace, []byte("coupon:"+c.Code))
		from := now.AddDate(0, 0, -1)
		to := now.AddDate(0, 0, c.ValidDays)
		if c.ValidDays < 0 {
			from = now.AddDate(0, 0, c.ValidDays-30)
		}
		_, err := db.Exec(`
			INSERT INTO coupons (id, code, name, kind, amount_off, percent_off, valid_from, valid_to, usage_limit, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				kind = EXCLUDED.kind,
				amount_off = EXCLUDED.amount_off,
				percent_off = EXCLUDED.percent_off,
				valid_from = EXCLUDED.valid_from,
				valid_to = EXCLUDED.valid_to,
				usage_limit = EXCLUDED.usage_limit;
		`, id, c.Code, c.Name, c.Kind, nullInt64(c.AmountOff), nullInt(c.PercentOff), from, to, nullInt(c.UsageLimit))
		if err != nil {
			log.Printf("Failed to upsert coupon %s: %v", c.Code, err)
		}
	}
}

func printToken(subject string, admin bool, ttl time.Duration) {
	svc, err := auth.NewService(auth.Config{
		Secret:   os.Getenv("JWT_SECRET"),
		Issuer:   os.Getenv("JWT_ISSUER"),
		Audience: os.Getenv("JWT_AUDIENCE"),
	})
	if err != nil {
		log.Fatalf("Failed to build token signer: %v", err)
	}
	p := common.Principal{BuyerID: subject}
	if admin {
		p.Roles = []string{auth.RoleAdmin}
	}
	token, err := svc.Sign(p, ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}

func nullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
