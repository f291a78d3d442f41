package mocks

//go:generate mockery --name ActivityStore --srcpkg github.com/wikimesh/centralindex/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name SiteStore --srcpkg github.com/wikimesh/centralindex/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name Resolver --srcpkg github.com/wikimesh/centralindex/internal/identity --output ./identity --outpkg identitymocks --with-expecter
