package models

import "time"

// Package представляет приобретаемый тарифный план.
// Duration хранится свободной строкой ("1 year", "6 months", "30 days"),
// парсится библиотекой duration при активации.
// PackageLimit nil означает безлимитный тариф.
type Package struct {
	PackageID    string    // Уникальный идентификатор пакета
	Name         string    // Название тарифа
	Duration     string    // Срок действия свободной строкой
	PackageLimit *int      // Лимит постов и промптов, nil — безлимит
	TrialPosts   int       // Лимит постов в пробном режиме
	Storage      int       // Квота хранилища
	MaxGroup     int       // Лимит на создание групп
	Price        int64     // Цена в минимальных единицах валюты
	CreatedAt    time.Time
}

// DummyPackage используется для приёма данных нового пакета из JSON-запроса.
type DummyPackage struct {
	Name         string `json:"name" validate:"required"`
	Duration     string `json:"duration" validate:"required"`
	PackageLimit *int   `json:"package_limit" validate:"omitempty,gt=0"`
	TrialPosts   int    `json:"trial_posts" validate:"omitempty,gte=0"`
	Storage      int    `json:"storage" validate:"omitempty,gte=0"`
	MaxGroup     int    `json:"max_group" validate:"omitempty,gte=0"`
	Price        int64  `json:"price" validate:"omitempty,gte=0"`
}
