package paint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileRepository keeps the catalog as a JSON array in a single file. The
// file is read on every call and rewritten wholesale on every mutation, so
// the file on disk is always the authoritative state.
type FileRepository struct {
	path string
	// mu serialises read-modify-write cycles within this process. Other
	// processes writing the same file are not coordinated.
	mu  sync.Mutex
	now func() time.Time
}

var _ Repository = (*FileRepository)(nil)

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path, now: time.Now}
}

func (r *FileRepository) Path() string { return r.path }

func (r *FileRepository) List(ctx context.Context) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *FileRepository) Get(ctx context.Context, id int64) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	products, err := r.load()
	if err != nil {
		return Product{}, err
	}
	i := findIndex(products, id)
	if i < 0 {
		return Product{}, ErrNotFound
	}
	return products[i], nil
}

func (r *FileRepository) Create(ctx context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	products, err := r.load()
	if err != nil {
		return Product{}, err
	}
	p.ID = nextID(r.now().UnixMilli(), products)
	products = append(products, p)
	if err := r.save(products); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *FileRepository) Update(ctx context.Context, id int64, patch Patch) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	products, err := r.load()
	if err != nil {
		return Product{}, err
	}
	i := findIndex(products, id)
	if i < 0 {
		return Product{}, ErrNotFound
	}
	products[i] = patch.Apply(products[i])
	if err := r.save(products); err != nil {
		return Product{}, err
	}
	return products[i], nil
}

func (r *FileRepository) Delete(ctx context.Context, id int64) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	products, err := r.load()
	if err != nil {
		return Product{}, err
	}
	i := findIndex(products, id)
	if i < 0 {
		return Product{}, ErrNotFound
	}
	removed := products[i]
	products = append(products[:i], products[i+1:]...)
	if err := r.save(products); err != nil {
		return Product{}, err
	}
	return removed, nil
}

func (r *FileRepository) Reset(ctx context.Context, products []Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if products == nil {
		products = []Product{}
	}
	return r.save(products)
}

// load reads the file, seeding it when it does not exist yet. Any other
// failure is returned as is; a partially parsed catalog is never returned.
func (r *FileRepository) load() ([]Product, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		seed := SeedCatalog()
		if err := r.save(seed); err != nil {
			return nil, err
		}
		return seed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read products file: %w", err)
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse products file %s: %w", r.path, err)
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// save writes to a temp file in the same directory and renames it over the
// target so readers never observe a half-written file.
func (r *FileRepository) save(products []Product) error {
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("encode products: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".paint-products-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace products file: %w", err)
	}
	return nil
}
