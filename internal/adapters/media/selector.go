package media

import (
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"x-persona-bot/internal/domain"
)

// typeByExt фиксированный allow-list расширений и их классификация.
var typeByExt = map[string]domain.MediaType{
	".jpg":  domain.MediaImage,
	".jpeg": domain.MediaImage,
	".png":  domain.MediaImage,
	".gif":  domain.MediaImage,
	".webp": domain.MediaImage,
	".mp4":  domain.MediaVideo,
	".mov":  domain.MediaVideo,
	".avi":  domain.MediaVideo,
}

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
}

// Selector выбирает случайные медиафайлы из папки.
type Selector struct {
	folder string
}

var _ domain.MediaLibrary = (*Selector)(nil)

// NewSelector создаёт селектор для указанной папки.
func NewSelector(folder string) *Selector {
	return &Selector{folder: folder}
}

// SelectRandom возвращает до count случайных медиафайлов без повторов.
// Отсутствующая или пустая папка — пустой список, не ошибка.
func (s *Selector) SelectRandom(count int) ([]domain.MediaAsset, error) {
	if count <= 0 {
		return nil, nil
	}
	if _, err := os.Stat(s.folder); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("проверка папки медиа: %w", err)
	}

	var files []string
	err := filepath.WalkDir(s.folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := typeByExt[ext]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("обход папки медиа: %w", err)
	}
	if len(files) == 0 {
		return nil, nil
	}

	rand.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })
	if count > len(files) {
		count = len(files)
	}

	assets := make([]domain.MediaAsset, 0, count)
	for _, path := range files[:count] {
		ext := strings.ToLower(filepath.Ext(path))
		assets = append(assets, domain.MediaAsset{
			Path: path,
			Type: typeByExt[ext],
			MIME: mimeByExt[ext],
		})
	}
	return assets, nil
}

// Load читает бинарное содержимое файла непосредственно перед публикацией.
func (s *Selector) Load(asset *domain.MediaAsset) error {
	data, err := os.ReadFile(asset.Path)
	if err != nil {
		return fmt.Errorf("чтение медиафайла: %w", err)
	}
	asset.Data = data
	return nil
}
