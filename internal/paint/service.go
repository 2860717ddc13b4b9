package paint

import "context"

// ChangeNotifier is told about every committed mutation. Implementations
// must return quickly; remote work belongs on a background queue.
type ChangeNotifier interface {
	ProductSaved(p Product, isUpdate bool)
	ProductDeleted(p Product)
}

type nopNotifier struct{}

func (nopNotifier) ProductSaved(Product, bool) {}
func (nopNotifier) ProductDeleted(Product)     {}

// ValidationError carries per-field messages for a rejected payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "invalid product" }

type Service struct {
	repo     Repository
	notifier ChangeNotifier
}

func NewService(repo Repository, notifier ChangeNotifier) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{repo: repo, notifier: notifier}
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// Create stores p under a freshly assigned id. Any id or CRM link on the
// input is ignored.
func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	if errs := Validate(p); len(errs) > 0 {
		return Product{}, &ValidationError{Fields: errs}
	}
	p.ID = 0
	p.BitrixID = nil
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.notifier.ProductSaved(created, false)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, patch Patch) (Product, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if errs := Validate(patch.Apply(current)); len(errs) > 0 {
		return Product{}, &ValidationError{Fields: errs}
	}
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Product{}, err
	}
	s.notifier.ProductSaved(updated, true)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.notifier.ProductDeleted(removed)
	return nil
}

// Import creates every product in order and returns the stored copies.
// It stops at the first failure; products created before it are kept.
func (s *Service) Import(ctx context.Context, products []Product) ([]Product, error) {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		created, err := s.Create(ctx, p)
		if err != nil {
			return out, err
		}
		out = append(out, created)
	}
	return out, nil
}
