package catalog

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"restoran-pos/internal/auth"
	"restoran-pos/internal/httpx"
	"restoran-pos/internal/models"
)

type ProductResponse struct {
	ID         uint            `json:"id"`
	TenantID   uint            `json:"tenant_id"`
	CategoryID *uint           `json:"category_id"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	Price      decimal.Decimal `json:"price"`
	IsActive   bool            `json:"is_active"`
}

func toProductResponse(p models.Product) ProductResponse {
	return ProductResponse{
		ID:         p.ID,
		TenantID:   p.TenantID,
		CategoryID: p.CategoryID,
		Name:       p.Name,
		SKU:        p.SKU,
		Price:      p.Price,
		IsActive:   p.IsActive,
	}
}

type CreateProductRequest struct {
	TenantID   *uint           `json:"tenant_id"`
	CategoryID *uint           `json:"category_id"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	Price      decimal.Decimal `json:"price"`
}

type UpdateProductRequest struct {
	Name       *string          `json:"name"`
	CategoryID *uint            `json:"category_id"`
	Price      *decimal.Decimal `json:"price"`
	IsActive   *bool            `json:"is_active"`
}

// GET /api/products?category_id=1&active=true&search=ayran
func ListProductsHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		q := ProductQuery{ActiveOnly: c.QueryBool("active", false), Search: c.Query("search")}
		if q.CategoryID, err = httpx.QueryUint(c, "category_id"); err != nil {
			return err
		}
		if q.TenantID, err = httpx.QueryUint(c, "tenant_id"); err != nil {
			return err
		}

		products, err := s.ListProducts(c.UserContext(), p, q)
		if err != nil {
			return err
		}
		res := make([]ProductResponse, 0, len(products))
		for _, prod := range products {
			res = append(res, toProductResponse(prod))
		}
		return c.JSON(res)
	}
}

// POST /api/products
func CreateProductHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		var body CreateProductRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}
		prod, err := s.CreateProduct(c.UserContext(), p, ProductInput{
			TenantID:   body.TenantID,
			CategoryID: body.CategoryID,
			Name:       body.Name,
			SKU:        body.SKU,
			Price:      body.Price,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toProductResponse(prod))
	}
}

// PUT /api/products/:id
func UpdateProductHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateProductRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}
		prod, err := s.UpdateProduct(c.UserContext(), p, id, ProductUpdate{
			Name:       body.Name,
			CategoryID: body.CategoryID,
			Price:      body.Price,
			IsActive:   body.IsActive,
		})
		if err != nil {
			return err
		}
		return c.JSON(toProductResponse(prod))
	}
}

// DELETE /api/products/:id
func DeleteProductHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := s.DeleteProduct(c.UserContext(), p, id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type CategoryResponse struct {
	ID           uint   `json:"id"`
	TenantID     uint   `json:"tenant_id"`
	BranchID     *uint  `json:"branch_id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
	CreatedAt    string `json:"created_at"`
}

type CreateCategoryRequest struct {
	TenantID     *uint  `json:"tenant_id"`
	BranchID     *uint  `json:"branch_id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
}

// GET /api/categories?branch_id=1
func ListCategoriesHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		branchID, err := httpx.QueryUint(c, "branch_id")
		if err != nil {
			return err
		}
		cats, err := s.ListCategories(c.UserContext(), p, branchID)
		if err != nil {
			return err
		}
		res := make([]CategoryResponse, 0, len(cats))
		for _, cat := range cats {
			res = append(res, CategoryResponse{
				ID:           cat.ID,
				TenantID:     cat.TenantID,
				BranchID:     cat.BranchID,
				Name:         cat.Name,
				DisplayOrder: cat.DisplayOrder,
				CreatedAt:    cat.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		return c.JSON(res)
	}
}

// POST /api/categories
func CreateCategoryHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		var body CreateCategoryRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}
		cat, err := s.CreateCategory(c.UserContext(), p, CategoryInput{
			TenantID:     body.TenantID,
			BranchID:     body.BranchID,
			Name:         body.Name,
			DisplayOrder: body.DisplayOrder,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(CategoryResponse{
			ID:           cat.ID,
			TenantID:     cat.TenantID,
			BranchID:     cat.BranchID,
			Name:         cat.Name,
			DisplayOrder: cat.DisplayOrder,
			CreatedAt:    cat.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

// DELETE /api/categories/:id
func DeleteCategoryHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := s.DeleteCategory(c.UserContext(), p, id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
