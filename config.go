package main

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	"examocr/pkg/ocr"
)

// Settings is the configuration surface of the service. Values come from an
// optional config.yaml in the working directory and from the environment
// (keys uppercased, dots replaced by underscores: OCR_GEMINI_API_KEY,
// DB_DSN, ...).
type Settings struct {
	ServerAddr    string `mapstructure:"server_addr"`
	Debug         bool   `mapstructure:"debug"`
	DBDSN         string `mapstructure:"db_dsn"`
	DBAutoMigrate bool   `mapstructure:"db_auto_migrate"`

	UploadDir  string `mapstructure:"upload_dir"`
	PDFDir     string `mapstructure:"pdf_dir"`
	ResultsDir string `mapstructure:"results_dir"`
	StaticDir  string `mapstructure:"static_dir"`

	// Source PDFs whose names appear here (case-insensitive) are listed as
	// answer sheets; everything else is a question paper.
	AnswerSheetFiles []string `mapstructure:"answer_sheet_files"`

	// Admission bound for concurrently executing attempts.
	MaxConcurrentAttempts int64 `mapstructure:"max_concurrent_attempts"`

	AuthRequired bool   `mapstructure:"auth_required"`
	JWTSecret    string `mapstructure:"jwt_secret"`

	OCR ocr.Config `mapstructure:"ocr"`
}

func loadSettings() (Settings, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_addr", ":8081")
	v.SetDefault("debug", false)
	v.SetDefault("db_dsn", "")
	v.SetDefault("db_auto_migrate", true)
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("pdf_dir", "pdf")
	v.SetDefault("results_dir", "results")
	v.SetDefault("static_dir", "static")
	v.SetDefault("answer_sheet_files", []string{"eng_1.pdf"})
	v.SetDefault("max_concurrent_attempts", 4)
	v.SetDefault("auth_required", false)
	v.SetDefault("jwt_secret", "dev-insecure-secret-change")

	v.SetDefault("ocr.gemini_api_key", "")
	v.SetDefault("ocr.gemini_model", "")
	v.SetDefault("ocr.gemini_endpoint", "")
	v.SetDefault("ocr.openrouter_api_key", "")
	v.SetDefault("ocr.qwen_model", "")
	v.SetDefault("ocr.openrouter_endpoint", "")
	v.SetDefault("ocr.surya_endpoint", "")
	v.SetDefault("ocr.tesseract_lang", "eng")
	v.SetDefault("ocr.paddle_model_path", "")
	v.SetDefault("ocr.paddle_dict_path", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, err
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// isAnswerSheetName reports whether name is on the answer-sheet allow-list.
func (s Settings) isAnswerSheetName(name string) bool {
	lower := strings.ToLower(name)
	for _, f := range s.AnswerSheetFiles {
		if strings.ToLower(f) == lower {
			return true
		}
	}
	return false
}
