package main

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/consumedhq/consumed/api"
	"github.com/consumedhq/consumed/core/csql"
	"github.com/consumedhq/consumed/core/geoip"
	"github.com/consumedhq/consumed/core/imagestore"
	"github.com/consumedhq/consumed/core/logger"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres password=docker dbname=postgres sslmode=disable"
type Service struct {
	Postgres       string `env:"POSTGRES,required" description:"the connection string for the Postgres DB"`
	Port           string `env:"PORT,default=3000" description:"the port to listen on"`
	Env            string `env:"ENV,default=development" description:"deployment environment, e.g. production"`
	BaseURL        string `env:"BASE_URL,default=http://localhost:3000" description:"public base URL for resource URIs"`
	TokenSecret    string `env:"TOKEN_SECRET,required" description:"HMAC secret for auth tokens"`
	PasswordPepper string `env:"PASSWORD_PEPPER,default=" description:"extra secret mixed into password hashes"`
	TokenDaysValid int    `env:"TOKEN_DAYS_VALID,default=30" description:"session validity in days"`
	CronAllowedIPs string `env:"CRON_ALLOWED_IPS,default=127.0.0.1" description:"comma separated IPs allowed on /external"`
	GeoIPURL       string `env:"GEOIP_URL,default=" description:"base URL of the IP geolocation service"`
	AvatarDir      string `env:"AVATAR_DIR,default=./data/avatars" description:"local avatar directory when S3 is not configured"`

	S3AccessID  string `env:"S3_ACCESS_ID,default=" description:"AWS access key id for the avatar bucket"`
	S3AccessKey string `env:"S3_ACCESS_KEY,default=" description:"AWS secret access key for the avatar bucket"`
	S3Region    string `env:"S3_REGION,default=eu-central-1" description:"AWS region of the avatar bucket"`
	S3Bucket    string `env:"S3_BUCKET,default=" description:"avatar bucket name, empty for local storage"`
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}

	level := logrus.InfoLevel
	if service.Env != "production" {
		level = logrus.DebugLevel
	}
	logger.InitLogger(level)

	db := csql.OpenWithSchema(service.Postgres, "consumed")
	defer db.Close()

	var images imagestore.Driver
	if service.S3Bucket != "" {
		s3, err := imagestore.NewS3(imagestore.S3Configuration{
			AccessID:   service.S3AccessID,
			AccessKey:  service.S3AccessKey,
			Region:     service.S3Region,
			BucketName: service.S3Bucket,
			KeyPrefix:  service.Env + "/",
		})
		if err != nil {
			panic(err)
		}
		images = s3
	} else {
		fs, err := imagestore.NewFilesystem(service.AvatarDir)
		if err != nil {
			panic(err)
		}
		images = fs
	}

	var geo geoip.Resolver = geoip.Null{}
	if service.GeoIPURL != "" {
		geo = geoip.NewClient(service.GeoIPURL)
	}

	var cronIPs []string
	for _, ip := range strings.Split(service.CronAllowedIPs, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			cronIPs = append(cronIPs, ip)
		}
	}

	router := mux.NewRouter()
	logger.AddRequestID(router)
	api.New(&api.Builder{
		DB:             db,
		Router:         router,
		Env:            service.Env,
		BaseURL:        service.BaseURL,
		TokenSecret:    service.TokenSecret,
		PasswordPepper: service.PasswordPepper,
		TokenDaysValid: service.TokenDaysValid,
		CronAllowedIPs: cronIPs,
		ImageStore:     images,
		GeoIP:          geo,
	})

	handler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(handlers.CompressHandler(router))

	logger.Default().Infoln("listen on port :" + service.Port)
	if err := http.ListenAndServe(":"+service.Port, handler); err != nil {
		logger.Default().Fatalln(err)
	}
}
